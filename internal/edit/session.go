package edit

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/mrsinham/dicomfix/internal/audit"
	"github.com/mrsinham/dicomfix/internal/dicom/rtplan"
	"github.com/mrsinham/dicomfix/internal/export"
	"github.com/mrsinham/dicomfix/internal/logging"
	"github.com/mrsinham/dicomfix/internal/metrics"
	"github.com/mrsinham/dicomfix/internal/plan"
	"github.com/mrsinham/dicomfix/internal/render"
	"github.com/mrsinham/dicomfix/internal/rescale"
	"github.com/mrsinham/dicomfix/internal/transform"
	"github.com/mrsinham/dicomfix/internal/util"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	warnStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("208"))
)

// Session runs one edit job.
type Session struct {
	Options Options
	Log     logging.Logger
	Out     io.Writer // progress and reports, stdout when nil
	Now     func() time.Time
	Rand    *rand.Rand // spot print sampling
	Metrics *metrics.Collector
}

// Result describes a finished run.
type Result struct {
	Output     string // empty when nothing was written
	Original   *plan.Plan
	Plan       *plan.Plan
	Rescale    *rescale.Report
	Admission  plan.AdmissionReport
	TotalSpots int
	Notes      []string // RayStation fix changes
	Files      []string // side outputs: RACEHORSE lists, spot maps, metrics
	RunID      int64    // audit row, 0 without audit database
}

// Run reads the input plan, applies the edits and writes the output. Every
// option is validated before the plan is touched.
func (s *Session) Run(ctx context.Context) (*Result, error) {
	o := s.Options
	log := logging.OrNoop(s.Log)
	out := s.Out
	if out == nil {
		out = os.Stdout
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	printf := func(format string, args ...any) {
		if !o.Quiet {
			fmt.Fprintf(out, format, args...)
		}
	}

	r, err := o.resolve()
	if err != nil {
		return nil, err
	}
	policy := plan.AdmissionPolicy{MinMU: o.MinMU}

	doc, err := rtplan.Read(o.Input)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	res := &Result{}

	// The RayStation fix works on the dataset and must run before decoding.
	if o.FixRayStation {
		notes, err := rtplan.FixRayStation(doc)
		if err != nil {
			return nil, fmt.Errorf("fix raystation: %w", err)
		}
		for _, n := range notes {
			log.Info(ctx, "raystation fix", logging.String("change", n))
		}
		res.Notes = notes
		printf("✓ RayStation fix applied (%d changes)\n", len(notes))
	}

	p, err := doc.Decode()
	if err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	if err := checkFieldCounts(p, o); err != nil {
		return nil, err
	}
	res.Original = p.Clone()
	res.TotalSpots = p.TotalSpots()
	log.Info(ctx, "plan loaded",
		logging.String("path", o.Input),
		logging.Int("fields", len(p.Fields)),
		logging.Int("spots", res.TotalSpots))

	if err := stage(ctx, log, "metadata"); err != nil {
		return nil, err
	}
	if o.Approve {
		transform.Approve(p)
	}
	if o.Date {
		transform.SetCurrentDate(p, now())
	}
	if r.intent != nil {
		transform.SetIntent(p, *r.intent)
	}
	for _, t := range r.tags {
		transform.SetTag(p, t.info, t.value)
	}

	if r.rescale {
		if err := stage(ctx, log, "rescale"); err != nil {
			return nil, err
		}
		rep, err := rescale.NewEngine(policy, log).Apply(ctx, p, r.mode)
		if err != nil {
			return nil, fmt.Errorf("rescale: %w", err)
		}
		res.Rescale = rep
		res.Admission.Merge(rep.Admission)
		if !o.Quiet {
			writeRescaleReport(out, rep)
		}
	}

	if err := stage(ctx, log, "structure"); err != nil {
		return nil, err
	}
	if o.DuplicateFields > 1 {
		if err := transform.DuplicateFields(p, o.DuplicateFields); err != nil {
			return nil, err
		}
		log.Info(ctx, "duplicated fields", logging.Int("copies", o.DuplicateFields), logging.Int("fields", len(p.Fields)))
	}
	if len(o.GantryAngles) > 0 {
		if err := transform.SetGantryAngles(p, o.GantryAngles); err != nil {
			return nil, err
		}
	}
	if r.table != nil {
		transform.SetTablePosition(p, r.table.Vertical, r.table.Longitudinal, r.table.Lateral)
	}
	if o.SnoutPosition != 0 {
		transform.SetSnoutPosition(p, o.SnoutPosition*10)
	}

	if o.TreatmentMachine != "" {
		transform.SetTreatmentMachine(p, o.TreatmentMachine)
	}
	if o.PlanLabel != "" {
		transform.SetPlanLabel(p, o.PlanLabel)
	}
	if o.PatientName != "" {
		transform.SetPatientName(p, o.PatientName)
	}
	if o.ReviewerName != "" {
		transform.SetReviewerName(p, o.ReviewerName)
	}
	if o.WizardTR4 {
		transform.WizardTR4(p)
		log.Info(ctx, "prepared plan for TR4")
	}

	if r.shifter != nil {
		if err := transform.SetRangeShifter(p, *r.shifter); err != nil {
			return nil, err
		}
		log.Info(ctx, "range shifter set", logging.String("id", r.shifter.String()))
	}
	if o.Repaint > 1 {
		if err := stage(ctx, log, "repaint"); err != nil {
			return nil, err
		}
		adm, err := transform.Repaint(p, o.Repaint, policy)
		if err != nil {
			return nil, fmt.Errorf("repaint: %w", err)
		}
		for _, ref := range adm.Rejected {
			log.Warn(ctx, "discarding repainted spot below minimum MU",
				logging.Int("field", ref.Field),
				logging.Float("energy_mev", ref.Energy),
				logging.Float("mu", ref.MU))
		}
		res.Admission.Merge(adm)
	}

	if o.PrintSpots > 0 && !o.Quiet {
		transform.PrintSpots(out, res.Original, p, o.PrintSpots, s.Rand)
	}
	if o.Inspect && !o.Quiet {
		plan.Inspect(out, p)
	}
	res.Plan = p

	if err := stage(ctx, log, "write"); err != nil {
		return nil, err
	}
	output := o.Output
	if output == "" && (o.edits() || !o.Inspect) {
		output = DefaultOutput
	}
	if output != "" {
		if err := doc.Encode(p); err != nil {
			return nil, fmt.Errorf("encode plan: %w", err)
		}
		if err := doc.Write(output); err != nil {
			return nil, err
		}
		res.Output = output
		printf("✓ New plan written to: %s\n", output)
	}

	if err := s.sideOutputs(ctx, log, res, now(), printf); err != nil {
		return res, err
	}

	if n := res.Admission.Discarded; n > 0 {
		msg := fmt.Sprintf("*** Discarded %d out of %d spots (%.2f %%) which were below %.2f MU ***",
			n, res.TotalSpots, res.Admission.Percent(res.TotalSpots), o.MinMU)
		log.Warn(ctx, "spots discarded",
			logging.Int("discarded", n),
			logging.Int("total", res.TotalSpots),
			logging.Float("min_mu", o.MinMU))
		printf("%s\n", warnStyle.Render(msg))
	}
	return res, nil
}

// checkFieldCounts rejects gantry angle lists that will not match the field
// count after duplication, before anything is changed.
func checkFieldCounts(p *plan.Plan, o Options) error {
	if len(o.GantryAngles) == 0 {
		return nil
	}
	n := len(p.Fields) * max(o.DuplicateFields, 1)
	if len(o.GantryAngles) != n {
		return fmt.Errorf("%d gantry angles given for %d fields: %w", len(o.GantryAngles), n, plan.ErrFieldCount)
	}
	return nil
}

// stage logs the start of a pipeline stage and stops when ctx is done.
func stage(ctx context.Context, log logging.Logger, name string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("edit cancelled before %s: %w", name, err)
	}
	log.Debug(ctx, "stage", logging.String("name", name))
	return nil
}

func writeRescaleReport(w io.Writer, rep *rescale.Report) {
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Rescale: %s", rep.Mode)))
	for _, f := range rep.Fields {
		fmt.Fprintln(w, plan.HLine)
		fmt.Fprintf(w, "    Field #%d '%s'  scale factor %.4f\n", f.Number, f.Name, f.ScaleFactor)
		fmt.Fprintf(w, "    Final Cumulative Weight : %10.4f -> %10.4f\n", f.Before.CumulativeWeight, f.After.CumulativeWeight)
		fmt.Fprintf(w, "    Beam Meterset           : %10.4f -> %10.4f MU\n", f.Before.BeamMeterset, f.After.BeamMeterset)
		fmt.Fprintf(w, "    Beam Dose               : %10.4f -> %10.4f Gy(RBE)\n", f.Before.BeamDose, f.After.BeamDose)
	}
	fmt.Fprintln(w, plan.HLine)
}

// sideOutputs writes the optional exports, metrics and audit record.
func (s *Session) sideOutputs(ctx context.Context, log logging.Logger, res *Result, now time.Time, printf func(string, ...any)) error {
	o := s.Options
	p := res.Plan

	if o.ExportRacehorse != "" {
		files, err := export.Racehorse(o.ExportRacehorse, p, now)
		if err != nil {
			return fmt.Errorf("export racehorse: %w", err)
		}
		res.Files = append(res.Files, files...)
		printf("✓ %s RACEHORSE spot lists written with base: %s\n", util.FormatCount(len(files)), o.ExportRacehorse)
	}

	if o.SpotMap != "" {
		files, err := render.WriteSpotMaps(o.SpotMap, res.Original, p, render.DefaultOptions())
		if err != nil {
			return fmt.Errorf("spot maps: %w", err)
		}
		res.Files = append(res.Files, files...)
		printf("✓ %d spot maps written to: %s\n", len(files), o.SpotMap)
	}

	if o.MetricsFile != "" {
		c := s.Metrics
		if c == nil {
			var err error
			if c, err = metrics.NewCollector(nil); err != nil {
				return err
			}
		}
		observeRun(c, res)
		if err := c.WriteTextfile(o.MetricsFile); err != nil {
			return err
		}
		res.Files = append(res.Files, o.MetricsFile)
		log.Debug(ctx, "metrics written", logging.String("path", o.MetricsFile))
	}

	if o.AuditDB != "" {
		store, err := audit.Open(ctx, o.AuditDB)
		if err != nil {
			return fmt.Errorf("audit: %w", err)
		}
		defer store.Close()
		id, err := store.Record(ctx, auditRun(o, res, now))
		if err != nil {
			return fmt.Errorf("audit: %w", err)
		}
		res.RunID = id
		log.Info(ctx, "run recorded", logging.String("db", o.AuditDB), logging.Any("run_id", id))
	}
	return nil
}

// observeRun counts spots and discards per source field. Rejections from
// duplicated fields count against the field they were copied from.
func observeRun(c *metrics.Collector, res *Result) {
	discarded := map[int]int{}
	for _, ref := range res.Admission.Rejected {
		discarded[ref.Origin]++
	}
	factors := map[int]float64{}
	if res.Rescale != nil {
		for _, f := range res.Rescale.Fields {
			factors[f.Number] = f.ScaleFactor
		}
	}
	for _, f := range res.Original.Fields {
		spots := 0
		for _, l := range f.Layers {
			if !l.IsEmpty() {
				spots += len(l.Spots)
			}
		}
		k, ok := factors[f.Number]
		if !ok {
			k = 1
		}
		c.ObserveField(f.Number, spots, discarded[f.Origin], k)
	}
	c.Fields.Set(float64(len(res.Plan.Fields)))
}

func auditRun(o Options, res *Result, now time.Time) audit.Run {
	run := audit.Run{
		At:        now,
		Input:     o.Input,
		Output:    res.Output,
		Mode:      "none",
		MinMU:     o.MinMU,
		Spots:     res.TotalSpots,
		Discarded: res.Admission.Discarded,
	}
	if res.Rescale != nil {
		run.Mode = res.Rescale.Mode.String()
		for _, f := range res.Rescale.Fields {
			run.Fields = append(run.Fields, audit.Field{
				Number:         f.Number,
				Name:           f.Name,
				ScaleFactor:    f.ScaleFactor,
				MetersetBefore: f.Before.BeamMeterset,
				MetersetAfter:  f.After.BeamMeterset,
				DoseBefore:     f.Before.BeamDose,
				DoseAfter:      f.After.BeamDose,
				FinalWeight:    f.After.CumulativeWeight,
			})
		}
	}
	return run
}
