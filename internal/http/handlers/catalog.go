package handlers

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yourorg/enos-mapper/internal/catalog"
)

// CatalogHandler parses uploaded point catalogs into Point records so the
// operator can inspect them before submitting a mapping operation.
type CatalogHandler struct{}

func NewCatalogHandler() *CatalogHandler {
	return &CatalogHandler{}
}

// Parse accepts an .xlsx or .csv upload under the "file" form field.
// POST /api/catalog/parse
func (h *CatalogHandler) Parse(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file upload required"})
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	var res *catalog.Result
	switch strings.ToLower(filepath.Ext(fileHeader.Filename)) {
	case ".xlsx", ".xlsm":
		res, err = catalog.LoadXLSX(f, c.Query("sheet"))
	case ".csv":
		res, err = catalog.LoadCSV(f)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported file type; use .xlsx or .csv"})
		return
	}
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"points":           res.Points,
		"skipped":          res.Skipped,
		"unmapped_headers": res.UnmappedHeaders,
	})
}
