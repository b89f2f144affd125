package discovery

// abbreviations maps short-form top-level discovery keys to canonical names.
var abbreviations = map[string]string{
	"act_t":              "action_topic",
	"act_tpl":            "action_template",
	"atype":              "automation_type",
	"aux_cmd_t":          "aux_command_topic",
	"aux_stat_t":         "aux_state_topic",
	"aux_stat_tpl":       "aux_state_template",
	"av_tones":           "available_tones",
	"avty":               "availability",
	"avty_mode":          "availability_mode",
	"avty_t":             "availability_topic",
	"avty_tpl":           "availability_template",
	"away_mode_cmd_t":    "away_mode_command_topic",
	"away_mode_stat_t":   "away_mode_state_topic",
	"away_mode_stat_tpl": "away_mode_state_template",
	"b_tpl":              "blue_template",
	"bri_cmd_t":          "brightness_command_topic",
	"bri_cmd_tpl":        "brightness_command_template",
	"bri_scl":            "brightness_scale",
	"bri_stat_t":         "brightness_state_topic",
	"bri_tpl":            "brightness_template",
	"bri_val_tpl":        "brightness_value_template",
	"clr_temp_cmd_t":     "color_temp_command_topic",
	"clr_temp_cmd_tpl":   "color_temp_command_template",
	"clr_temp_stat_t":    "color_temp_state_topic",
	"clr_temp_tpl":       "color_temp_template",
	"clr_temp_val_tpl":   "color_temp_value_template",
	"cmd_off_tpl":        "command_off_template",
	"cmd_on_tpl":         "command_on_template",
	"cmd_t":              "command_topic",
	"cmd_tpl":            "command_template",
	"cod_arm_req":        "code_arm_required",
	"cod_dis_req":        "code_disarm_required",
	"curr_temp_t":        "current_temperature_topic",
	"curr_temp_tpl":      "current_temperature_template",
	"dev":                "device",
	"dev_cla":            "device_class",
	"e":                  "encoding",
	"ent_cat":            "entity_category",
	"exp_aft":            "expire_after",
	"fanspd_lst":         "fan_speed_list",
	"frc_upd":            "force_update",
	"fx_cmd_t":           "effect_command_topic",
	"fx_list":            "effect_list",
	"fx_stat_t":          "effect_state_topic",
	"fx_tpl":             "effect_template",
	"fx_val_tpl":         "effect_value_template",
	"g_tpl":              "green_template",
	"hs_cmd_t":           "hs_command_topic",
	"hs_stat_t":          "hs_state_topic",
	"hs_val_tpl":         "hs_value_template",
	"ic":                 "icon",
	"init":               "initial",
	"json_attr":          "json_attributes",
	"json_attr_t":        "json_attributes_topic",
	"json_attr_tpl":      "json_attributes_template",
	"max":                "max",
	"max_mirs":           "max_mireds",
	"max_temp":           "max_temp",
	"min":                "min",
	"min_mirs":           "min_mireds",
	"min_temp":           "min_temp",
	"mode_cmd_t":         "mode_command_topic",
	"mode_stat_t":        "mode_state_topic",
	"mode_stat_tpl":      "mode_state_template",
	"modes":              "modes",
	"name":               "name",
	"obj_id":             "object_id",
	"off_dly":            "off_delay",
	"on_cmd_type":        "on_command_type",
	"opt":                "optimistic",
	"osc_cmd_t":          "oscillation_command_topic",
	"osc_stat_t":         "oscillation_state_topic",
	"osc_val_tpl":        "oscillation_value_template",
	"pl":                 "payload",
	"pl_arm_away":        "payload_arm_away",
	"pl_arm_home":        "payload_arm_home",
	"pl_arm_nite":        "payload_arm_night",
	"pl_avail":           "payload_available",
	"pl_cls":             "payload_close",
	"pl_disarm":          "payload_disarm",
	"pl_hi_spd":          "payload_high_speed",
	"pl_lo_spd":          "payload_low_speed",
	"pl_med_spd":         "payload_medium_speed",
	"pl_not_avail":       "payload_not_available",
	"pl_off":             "payload_off",
	"pl_on":              "payload_on",
	"pl_open":            "payload_open",
	"pl_osc_off":         "payload_oscillation_off",
	"pl_osc_on":          "payload_oscillation_on",
	"pl_rst":             "payload_reset",
	"pl_stop":            "payload_stop",
	"pos_clsd":           "position_closed",
	"pos_open":           "position_open",
	"pos_t":              "position_topic",
	"pos_tpl":            "position_template",
	"pow_cmd_t":          "power_command_topic",
	"pow_stat_t":         "power_state_topic",
	"pow_stat_tpl":       "power_state_template",
	"qos":                "qos",
	"r_tpl":              "red_template",
	"ret":                "retain",
	"rgb_cmd_t":          "rgb_command_topic",
	"rgb_cmd_tpl":        "rgb_command_template",
	"rgb_stat_t":         "rgb_state_topic",
	"rgb_val_tpl":        "rgb_value_template",
	"send_cmd_t":         "send_command_topic",
	"send_if_off":        "send_if_off",
	"set_fan_spd_t":      "set_fan_speed_topic",
	"set_pos_t":          "set_position_topic",
	"set_pos_tpl":        "set_position_template",
	"spd_cmd_t":          "speed_command_topic",
	"spd_stat_t":         "speed_state_topic",
	"spd_val_tpl":        "speed_value_template",
	"spds":               "speeds",
	"src_type":           "source_type",
	"stat_clsd":          "state_closed",
	"stat_cls":           "state_closing",
	"stat_off":           "state_off",
	"stat_on":            "state_on",
	"stat_open":          "state_open",
	"stat_opening":       "state_opening",
	"stat_t":             "state_topic",
	"stat_tpl":           "state_template",
	"stat_val_tpl":       "state_value_template",
	"stype":              "subtype",
	"sup_feat":           "supported_features",
	"t":                  "topic",
	"temp_cmd_t":         "temperature_command_topic",
	"temp_hi_cmd_t":      "temperature_high_command_topic",
	"temp_hi_stat_t":     "temperature_high_state_topic",
	"temp_hi_stat_tpl":   "temperature_high_state_template",
	"temp_lo_cmd_t":      "temperature_low_command_topic",
	"temp_lo_stat_t":     "temperature_low_state_topic",
	"temp_lo_stat_tpl":   "temperature_low_state_template",
	"temp_stat_t":        "temperature_state_topic",
	"temp_stat_tpl":      "temperature_state_template",
	"temp_unit":          "temperature_unit",
	"tilt_clsd_val":      "tilt_closed_value",
	"tilt_cmd_t":         "tilt_command_topic",
	"tilt_inv_stat":      "tilt_invert_state",
	"tilt_max":           "tilt_max",
	"tilt_min":           "tilt_min",
	"tilt_opnd_val":      "tilt_opened_value",
	"tilt_opt":           "tilt_optimistic",
	"tilt_status_t":      "tilt_status_topic",
	"tilt_status_tpl":    "tilt_status_template",
	"uniq_id":            "unique_id",
	"unit_of_meas":       "unit_of_measurement",
	"val_tpl":            "value_template",
	"whit_val_cmd_t":     "white_value_command_topic",
	"whit_val_scl":       "white_value_scale",
	"whit_val_stat_t":    "white_value_state_topic",
	"whit_val_tpl":       "white_value_template",
	"xy_cmd_t":           "xy_command_topic",
	"xy_stat_t":          "xy_state_topic",
	"xy_val_tpl":         "xy_value_template",
}

// deviceAbbreviations maps short keys inside the nested device object.
// These keys are only meaningful inside "device".
var deviceAbbreviations = map[string]string{
	"cns":        "connections",
	"ids":        "identifiers",
	"name":       "name",
	"mf":         "manufacturer",
	"mdl":        "model",
	"mdl_id":     "model_id",
	"hw":         "hw_version",
	"sw":         "sw_version",
	"sa":         "suggested_area",
	"cu":         "configuration_url",
	"sn":         "serial_number",
	"via_device": "via_device",
}

// ExpandAbbreviations returns a copy of payload with every short-form key
// replaced by its canonical name. Keys absent from the table pass through
// unchanged. When a payload carries both the short and the canonical
// spelling of a key, the canonical entry wins.
//
// The nested device object is expanded through its own table.
func ExpandAbbreviations(payload map[string]Value) Config {
	out := make(Config, len(payload))
	canonical := make(map[string]bool, len(payload))

	for key, value := range payload {
		name, abbreviated := abbreviations[key]
		if !abbreviated {
			name = key
		}
		isCanonical := !abbreviated || name == key
		if _, seen := out[name]; seen && canonical[name] && !isCanonical {
			continue
		}

		if name == FieldDevice {
			value = expandDevice(value)
		}
		out[name] = value
		canonical[name] = canonical[name] || isCanonical
	}
	return out
}

func expandDevice(v Value) Value {
	fields := v.Fields()
	if fields == nil {
		return v
	}
	out := make(map[string]Value, len(fields))
	for key, value := range fields {
		name, ok := deviceAbbreviations[key]
		if !ok {
			name = key
		}
		if _, seen := out[name]; seen && ok && name != key {
			continue
		}
		out[name] = value
	}
	return Object(out)
}
