package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/cwbudde/algo-comprs/dsp/dynamics"
)

const (
	curveFromDB = -60.0
	curveToDB   = 6.0
	curveStepDB = 3.0
)

// printCurve writes the static transfer curve of p as a table.
func printCurve(w io.Writer, p dynamics.Params) error {
	g := dynamics.GainComputer{ThresholdDB: p.ThresholdDB, Ratio: p.Ratio, KneeDB: p.KneeDB}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)

	if _, err := fmt.Fprintf(tw, "Input [dB]\tOutput [dB]\tReduction [dB]\t\n"); err != nil {
		return err
	}

	for in := curveFromDB; in <= curveToDB; in += curveStepDB {
		if _, err := fmt.Fprintf(tw, "%.1f\t%.2f\t%.2f\t\n", in, g.OutputLevelDB(in), g.ReductionDB(in)); err != nil {
			return err
		}
	}

	return tw.Flush()
}
