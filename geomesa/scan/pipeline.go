package scan

import (
	"context"
	"fmt"
	"sort"

	"github.com/geomesa/geomesa-core/geomesa"
	"github.com/geomesa/geomesa-core/geomesa/filter"
	"github.com/geomesa/geomesa-core/geomesa/index"
	"github.com/geomesa/geomesa-core/geomesa/planner"
)

// Decoder turns a raw backend row into a feature (spec §6's feature
// serializer contract); geomesa/serde implements this.
type Decoder interface {
	Decode(ft *geomesa.FeatureType, row geomesa.Row) (*geomesa.Feature, error)
}

// Pipeline executes one ScanPlan end to end: backend scan -> decode ->
// dedupe (when the plan asks for it) -> residual filter -> transform, then
// either a density or BIN aggregator that emits one synthetic feature at the
// end, or optional sort -> optional sample -> stream (spec §4.8).
// Aggregation runs client-side on decoded, filtered features; there is no
// pre-decode aggregation stage, and sampling is not applied to aggregator
// input. Grounded on the teacher's
// datalog/executor/executor.go / query_executor.go staged execution.
type Pipeline struct {
	Backend      Backend
	Decoder      Decoder
	QueryThreads int
	BufferRows   int
}

// Run executes plan and streams results on the returned channel; the
// channel closes when the scan completes, is cancelled, or errors. An error
// is delivered on the returned error channel before out closes (spec §4.8
// "all stages are cancelable; cancellation tears down the backend scanner
// and releases any buffers on the next poll").
func (p *Pipeline) Run(ctx context.Context, plan *planner.ScanPlan) (<-chan *geomesa.Feature, <-chan error) {
	bufferRows := p.BufferRows
	if bufferRows <= 0 {
		bufferRows = 256
	}
	out := make(chan *geomesa.Feature, bufferRows)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)
		if err := p.run(ctx, plan, out); err != nil {
			errs <- err
		}
	}()
	return out, errs
}

func (p *Pipeline) run(ctx context.Context, plan *planner.ScanPlan, out chan<- *geomesa.Feature) error {
	if plan.Empty() {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var dedupe *planner.Deduper
	if plan.Dedupe {
		dedupe = planner.NewDeduper(0)
	}

	density := densityAggregatorFor(plan)
	bin := binAggregatorFor(plan)
	needsBuffer := len(plan.Sort) > 0

	var collected []*geomesa.Feature

	for _, d := range plan.Disjuncts {
		cfs := cfsForPlan(plan, bin != nil)
		table := geomesa.IndexTableName(plan.FeatureType.Name, d.Strategy.Index.TableKind())
		rows, scanErrs := ScanRanges(ctx, p.Backend, table, cfs, d.Ranges, p.QueryThreads, p.BufferRows)
		residual := filter.And{Clauses: d.Strategy.Secondary}

		rowsOpen, errsOpen := true, true
		for rowsOpen || errsOpen {
			select {
			case row, ok := <-rows:
				if !ok {
					rowsOpen = false
					continue
				}
				f, err := p.Decoder.Decode(plan.FeatureType, row)
				if err != nil {
					return fmt.Errorf("%w: %v", geomesa.ErrSerde, err)
				}
				if dedupe != nil && !dedupe.Admit(f.ID) {
					continue
				}
				if !filter.Eval(residual, plan.FeatureType, f) {
					continue
				}
				f = applyTransform(plan.FeatureType, f, plan.Transform)

				switch {
				case density != nil:
					density.Add(plan.FeatureType, f)
				case bin != nil:
					bin.Add(plan.FeatureType, f)
				case needsBuffer:
					collected = append(collected, f)
				default:
					if plan.Sampling > 0 && !Keep(sampleKeyFor(plan.FeatureType, f, plan.SampleBy), plan.Sampling) {
						continue
					}
					select {
					case out <- f:
					case <-ctx.Done():
						return ctx.Err()
					}
				}
			case err, ok := <-scanErrs:
				if !ok {
					errsOpen = false
					continue
				}
				if err != nil {
					return err
				}
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	// A spilt deduper is a best-effort warning, not a hard failure, at the
	// pipeline's default strict=false (spec §4.7 step 4); dedupe.Err(true)
	// is for callers that want ErrDedupeBudgetExceeded surfaced instead.

	if density != nil {
		return emitOne(ctx, out, densityFeature(plan.FeatureType, density))
	}
	if bin != nil {
		return emitOne(ctx, out, binFeature(plan.FeatureType, bin))
	}

	if needsBuffer {
		if len(plan.Sort) > 0 {
			sortFeatures(plan.FeatureType, collected, plan.Sort)
		}
		for _, f := range collected {
			if plan.Sampling > 0 && !Keep(sampleKeyFor(plan.FeatureType, f, plan.SampleBy), plan.Sampling) {
				continue
			}
			select {
			case out <- f:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

func emitOne(ctx context.Context, out chan<- *geomesa.Feature, f *geomesa.Feature) error {
	select {
	case out <- f:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func cfsForPlan(plan *planner.ScanPlan, binRequested bool) []string {
	if binRequested {
		return []string{index.CFBin}
	}
	return []string{index.CFData}
}

func densityAggregatorFor(plan *planner.ScanPlan) *DensityGrid {
	if plan.Density == nil {
		return nil
	}
	return NewDensityGrid(*plan.Density)
}

func binAggregatorFor(plan *planner.ScanPlan) *BinAggregator {
	if plan.BinTrack == "" && plan.BinLabel == "" {
		return nil
	}
	return NewBinAggregator(plan.BinTrack, plan.BinLabel, plan.BinSort)
}

// densityFeature wraps a DensityGrid's counts into a single synthetic
// feature, per spec §4.8 "emits one synthetic feature carrying the grid".
func densityFeature(ft *geomesa.FeatureType, g *DensityGrid) *geomesa.Feature {
	return &geomesa.Feature{
		ID: "density",
		UserData: map[string]string{
			"density.width":  fmt.Sprintf("%d", g.hint.Width),
			"density.height": fmt.Sprintf("%d", g.hint.Height),
		},
		Values: []geomesa.Value{g.Counts()},
	}
}

// binFeature wraps a packed BIN chunk into a single synthetic feature.
func binFeature(ft *geomesa.FeatureType, b *BinAggregator) *geomesa.Feature {
	return &geomesa.Feature{
		ID:     "bin",
		Values: []geomesa.Value{b.Bytes()},
	}
}

// applyTransform projects a feature down to the requested attribute subset,
// clearing the rest. A full reprojection to a narrower FeatureType is left
// to the caller presenting results; the pipeline only needs to stop carrying
// data the query didn't ask for.
func applyTransform(ft *geomesa.FeatureType, f *geomesa.Feature, transform []string) *geomesa.Feature {
	if len(transform) == 0 {
		return f
	}
	keep := make(map[string]bool, len(transform))
	for _, name := range transform {
		keep[name] = true
	}
	values := make([]geomesa.Value, len(f.Values))
	for i, a := range ft.Attributes {
		if i < len(f.Values) && keep[a.Name] {
			values[i] = f.Values[i]
		}
	}
	return &geomesa.Feature{ID: f.ID, Values: values, UserData: f.UserData, Visibility: f.Visibility}
}

// sampleKeyFor implements "reservoir by feature-id or by sample-by
// attribute" (spec §6 Hints): when sampleBy names an attribute, its string
// form is hashed instead of the feature id.
func sampleKeyFor(ft *geomesa.FeatureType, f *geomesa.Feature, sampleBy string) string {
	if sampleBy == "" {
		return f.ID
	}
	if v, has := f.Value(ft, sampleBy); has && v != nil {
		return fmt.Sprintf("%v", v)
	}
	return f.ID
}

// sortFeatures realises plan.Sort by buffering into a slice and sorting in
// place (spec §4.8 "sort is realised by buffering into a bounded list").
func sortFeatures(ft *geomesa.FeatureType, features []*geomesa.Feature, keys []planner.SortKey) {
	sort.SliceStable(features, func(i, j int) bool {
		for _, k := range keys {
			vi, hasI := features[i].Value(ft, k.Attr)
			vj, hasJ := features[j].Value(ft, k.Attr)
			if !hasI || !hasJ {
				continue
			}
			cmp := geomesa.CompareValues(vi, vj)
			if cmp == 0 {
				continue
			}
			if k.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}
