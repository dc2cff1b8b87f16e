package ontology

import "github.com/yourorg/enos-mapper/internal/models"

// Default returns a built-in ontology covering the common HVAC equipment
// classes. Deployments with site-specific catalogs load their own documents
// instead; the built-in set keeps the CLI and tests usable out of the box.
func Default() *Store {
	s, err := build(defaultEquipment(), defaultComponents(), defaultPhenomena())
	if err != nil {
		// The built-in tables are static; a build failure here is a bug.
		panic(err)
	}
	return s
}

func defaultComponents() []Component {
	return []Component{
		{ID: "CWP", Name: "Condenser Water Pump", Aliases: []string{"cwp", "cond water pump"}},
		{ID: "CHWP", Name: "Chilled Water Pump", Aliases: []string{"chwp"}},
		{ID: "COMP", Name: "Compressor", Aliases: []string{"comp", "compressor"}},
		{ID: "COND", Name: "Condenser", Aliases: []string{"cond", "condenser"}},
		{ID: "EVAP", Name: "Evaporator", Aliases: []string{"evap", "evaporator"}},
		{ID: "VSD", Name: "Variable Speed Drive", Aliases: []string{"vsd", "vfd", "drive"}},
		{ID: "FAN", Name: "Fan", Aliases: []string{"fan", "sf", "rf", "ef"}},
		{ID: "VALVE", Name: "Valve", Aliases: []string{"valve", "vlv"}},
		{ID: "DAMPER", Name: "Damper", Aliases: []string{"damper", "dmpr", "dpr"}},
		{ID: "TEMP_SENSOR", Name: "Temperature Sensor", Aliases: []string{"temp", "tmp", "temperature"}},
		{ID: "FILTER", Name: "Filter", Aliases: []string{"filter", "flt"}},
		{ID: "COIL", Name: "Coil", Aliases: []string{"coil", "clg coil", "htg coil"}},
	}
}

func defaultEquipment() []Equipment {
	return []Equipment{
		{
			Type:          "CH-SYS",
			Description:   "Chiller plant system: chillers with condenser and chilled water loops",
			Abbreviations: []string{"CH-SYS", "CHSYS", "CHILLER", "CH"},
			Components:    []string{"CWP", "CHWP", "COMP", "COND", "EVAP", "VSD"},
			NamePatterns:  []string{"CH-SYS", "CHSYS", "CHILLER", "CHPL", "CHILLERPLANT"},
			StandardPoints: []StandardPoint{
				{Name: "VSD.Hz", EnosID: "PUMP_raw_frequency", Phenomenon: "frequency", Quantity: "output", Unit: "Hz", Function: models.FunctionSensor},
				{Name: "CHWS.Temp", EnosID: "CHWS_raw_temp", Phenomenon: "temperature", Quantity: "supply", Unit: "degC", Function: models.FunctionSensor},
				{Name: "CHWR.Temp", EnosID: "CHWR_raw_temp", Phenomenon: "temperature", Quantity: "return", Unit: "degC", Function: models.FunctionSensor},
				{Name: "CWS.Temp", EnosID: "CWS_raw_temp", Phenomenon: "temperature", Quantity: "supply", Unit: "degC", Function: models.FunctionSensor},
				{Name: "CWR.Temp", EnosID: "CWR_raw_temp", Phenomenon: "temperature", Quantity: "return", Unit: "degC", Function: models.FunctionSensor},
				{Name: "kW", EnosID: "raw_active_power", Phenomenon: "power", Quantity: "active", Unit: "kW", Function: models.FunctionSensor},
				{Name: "Status", EnosID: "raw_run_status", Phenomenon: "status", Function: models.FunctionStatus},
				{Name: "Enable", EnosID: "write_enable", Phenomenon: "status", Function: models.FunctionCommand},
			},
		},
		{
			Type:          "FCU",
			Description:   "Fan coil unit serving a single room or zone",
			Abbreviations: []string{"FCU"},
			Components:    []string{"FAN", "VALVE", "TEMP_SENSOR", "COIL"},
			NamePatterns:  []string{"FCU"},
			StandardPoints: []StandardPoint{
				{Name: "RoomTemp", EnosID: "RoomTemp", Phenomenon: "temperature", Quantity: "room", Unit: "degC", Function: models.FunctionSensor},
				{Name: "RoomTempSetpoint", EnosID: "RoomTempSetpoint", Phenomenon: "temperature", Quantity: "room", Unit: "degC", Function: models.FunctionSetpoint},
				{Name: "FanStatus", EnosID: "raw_fan_status", Phenomenon: "status", Function: models.FunctionStatus},
				{Name: "FanSpeed", EnosID: "raw_fan_speed", Phenomenon: "speed", Unit: "%", Function: models.FunctionSensor},
				{Name: "ValvePosition", EnosID: "raw_valve_position", Phenomenon: "position", Unit: "%", Function: models.FunctionSensor},
				{Name: "OnOff", EnosID: "write_on_off", Phenomenon: "status", Function: models.FunctionCommand},
			},
		},
		{
			Type:          "CT",
			Description:   "Cooling tower rejecting condenser loop heat",
			Abbreviations: []string{"CT", "COOLING-TOWER", "CLG-TWR"},
			Components:    []string{"FAN", "VSD"},
			NamePatterns:  []string{"CT", "COOLINGTOWER", "COOLING-TOWER"},
			StandardPoints: []StandardPoint{
				{Name: "Fan.Hz", EnosID: "fan_frequency", Phenomenon: "frequency", Quantity: "output", Unit: "Hz", Function: models.FunctionSensor},
				{Name: "Fan.Status", EnosID: "raw_fan_status", Phenomenon: "status", Function: models.FunctionStatus},
				{Name: "SumpTemp", EnosID: "raw_sump_temp", Phenomenon: "temperature", Quantity: "sump", Unit: "degC", Function: models.FunctionSensor},
			},
		},
		{
			Type:          "AHU",
			Description:   "Air handling unit with supply and return air paths",
			Abbreviations: []string{"AHU", "MAU", "PAU"},
			Components:    []string{"FAN", "DAMPER", "FILTER", "COIL", "TEMP_SENSOR", "VSD"},
			NamePatterns:  []string{"AHU", "MAU", "PAU"},
			StandardPoints: []StandardPoint{
				{Name: "SAT", EnosID: "raw_supply_air_temp", Phenomenon: "temperature", Quantity: "supply", Unit: "degC", Function: models.FunctionSensor},
				{Name: "RAT", EnosID: "raw_return_air_temp", Phenomenon: "temperature", Quantity: "return", Unit: "degC", Function: models.FunctionSensor},
				{Name: "SF.Status", EnosID: "raw_supply_fan_status", Phenomenon: "status", Function: models.FunctionStatus},
				{Name: "SF.Hz", EnosID: "supply_fan_frequency", Phenomenon: "frequency", Quantity: "output", Unit: "Hz", Function: models.FunctionSensor},
				{Name: "SATSetpoint", EnosID: "write_supply_air_temp_sp", Phenomenon: "temperature", Quantity: "supply", Unit: "degC", Function: models.FunctionSetpoint},
			},
		},
		{
			Type:          "VAV",
			Description:   "Variable air volume terminal box",
			Abbreviations: []string{"VAV"},
			Components:    []string{"DAMPER", "TEMP_SENSOR"},
			NamePatterns:  []string{"VAV"},
			StandardPoints: []StandardPoint{
				{Name: "Airflow", EnosID: "raw_airflow", Phenomenon: "flow", Quantity: "air", Unit: "L/s", Function: models.FunctionSensor},
				{Name: "DmprPos", EnosID: "raw_damper_position", Phenomenon: "position", Unit: "%", Function: models.FunctionSensor},
				{Name: "ZoneTemp", EnosID: "raw_zone_temp", Phenomenon: "temperature", Quantity: "room", Unit: "degC", Function: models.FunctionSensor},
			},
		},
		{
			Type:          "PUMP",
			Description:   "Standalone water pump",
			Abbreviations: []string{"PUMP", "PMP"},
			Components:    []string{"VSD"},
			NamePatterns:  []string{"PUMP", "PMP"},
			StandardPoints: []StandardPoint{
				{Name: "VSD.Hz", EnosID: "raw_frequency", Phenomenon: "frequency", Quantity: "output", Unit: "Hz", Function: models.FunctionSensor},
				{Name: "Status", EnosID: "raw_run_status", Phenomenon: "status", Function: models.FunctionStatus},
			},
		},
	}
}

func defaultPhenomena() []Phenomenon {
	return []Phenomenon{
		{
			Name:       "temperature",
			Quantities: []string{"supply", "return", "room", "space", "sump", "outdoor"},
			Units:      map[string][]string{"": {"degC", "degF", "K"}},
		},
		{
			Name:       "pressure",
			Quantities: []string{"static", "differential"},
			Units:      map[string][]string{"": {"kPa", "Pa", "psi", "bar"}},
			Related:    []string{"flow"},
		},
		{
			Name:       "flow",
			Quantities: []string{"air", "water"},
			Units:      map[string][]string{"air": {"L/s", "m3/h", "cfm"}, "water": {"L/s", "m3/h", "gpm"}, "": {"L/s", "m3/h"}},
			Related:    []string{"pressure"},
		},
		{
			Name:       "frequency",
			Quantities: []string{"output"},
			Units:      map[string][]string{"": {"Hz"}},
			Related:    []string{"speed"},
		},
		{
			Name:       "speed",
			Quantities: []string{"output"},
			Units:      map[string][]string{"": {"rpm", "%"}},
			Related:    []string{"frequency"},
		},
		{
			Name:       "power",
			Quantities: []string{"active", "reactive"},
			Units:      map[string][]string{"": {"kW", "W"}},
			Related:    []string{"energy"},
		},
		{
			Name:       "energy",
			Quantities: []string{"active"},
			Units:      map[string][]string{"": {"kWh"}},
			Related:    []string{"power"},
		},
		{
			Name:  "humidity",
			Units: map[string][]string{"": {"%RH", "%"}},
		},
		{
			Name:    "position",
			Units:   map[string][]string{"": {"%"}},
			Related: []string{"status"},
		},
		{
			Name:    "status",
			Related: []string{"position"},
		},
	}
}
