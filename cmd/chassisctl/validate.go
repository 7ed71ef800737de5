package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"chassis-controller/internal/pid"
	"chassis-controller/internal/routine"
)

func validate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "config ok")

	distancePlant, headingPlant := cfg.PlantGains()
	loops := []struct {
		role  string
		gains pid.Gains
		plant float64
	}{
		{"distance", cfg.Tuning.Distance, distancePlant},
		{"turn", cfg.Tuning.Turn, headingPlant},
		{"heading", cfg.Tuning.Heading, headingPlant},
	}
	for _, l := range loops {
		for _, w := range pid.ValidateGains(l.role, l.gains) {
			fmt.Fprintln(out, "warning:", w)
		}
		if !pid.IntegratorStable(l.gains, l.plant) {
			fmt.Fprintf(out, "warning: %s: kp=%.3f kd=%.3f oscillate on the simulated robot (%.4f per volt per tick)\n",
				l.role, l.gains.Kp, l.gains.Kd, l.plant)
		}
	}

	if routinePath != "" {
		r, err := routine.Load(routinePath)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "routine %s ok (%d steps)\n", r.Name, len(r.Steps))
	}
	return nil
}
