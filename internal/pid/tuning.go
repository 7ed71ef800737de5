package pid

import "fmt"

// ValidateGains checks whether gains are reasonable for volt-per-unit drivetrain control.
// It returns human-readable warnings; an empty slice means nothing looks off.
func ValidateGains(role string, g Gains) []string {
	var warnings []string

	// Check for reasonable ranges
	if g.Kp < 0 || g.Kp > 20 {
		warnings = append(warnings, fmt.Sprintf("%s: kp should typically be between 0-20", role))
	}

	if g.Ki < 0 || g.Ki > 2 {
		warnings = append(warnings, fmt.Sprintf("%s: ki should typically be between 0-2", role))
	}

	if g.Kd < 0 || g.Kd > 100 {
		warnings = append(warnings, fmt.Sprintf("%s: kd should typically be between 0-100", role))
	}

	// Check for potential oscillation
	if g.Kp > 10 && g.Ki > 0.5 {
		warnings = append(warnings, fmt.Sprintf("%s: high kp with high ki may cause oscillation", role))
	}

	return warnings
}

// IntegratorStable reports whether a PD loop with gains g is stable against a discrete
// pure-integrator plant that moves plantGain units per tick per volt. The integral term
// is ignored.
func IntegratorStable(g Gains, plantGain float64) bool {
	if plantGain <= 0 {
		return true
	}
	return g.Kp > 0 && g.Kd >= 0 && plantGain*(g.Kp+2*g.Kd) < 2
}
