package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kilianp07/emsplanner/core/plan"
)

// fixturesRoot is the filesystem tree recorded scenarios live under:
// fixtures/<fixture>/<scenario>/{ems_fixture.json, ems_plan.json,
// ems_plan.hash, ...}.
const fixturesRoot = "fixtures"

// RecordScenario solves fixturePath and stores its resolved inputs and
// resulting plan under fixtures/<fixture>/<name>/, alongside a sha256 hash
// of the rounded plan document that lets a consumer detect drift without a
// byte-for-byte diff. RefreshBaseline rewrites the hash; neither it nor
// ScenarioReport compares hashes.
func (s *Service) RecordScenario(ctx context.Context, fixturePath, name string) error {
	result, err := s.Solve(ctx, fixturePath)
	if err != nil {
		return fmt.Errorf("solve fixture %s: %w", fixturePath, err)
	}
	fixtureName := strings.TrimSuffix(filepath.Base(fixturePath), filepath.Ext(fixturePath))
	dir := filepath.Join(fixturesRoot, fixtureName, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	fixtureBytes, err := os.ReadFile(fixturePath)
	if err != nil {
		return fmt.Errorf("read fixture %s: %w", fixturePath, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ems_fixture.json"), fixtureBytes, 0o644); err != nil {
		return err
	}
	return writePlanAndHash(dir, result)
}

// RefreshBaseline re-solves every recorded scenario under fixtures/ whose
// fixture/scenario names match the (optional) filters, overwriting its
// stored ems_plan.json and ems_plan.hash. Empty filters match everything.
func (s *Service) RefreshBaseline(ctx context.Context, fixtureFilter, scenarioFilter string) (int, error) {
	dirs, err := scenarioDirs(fixtureFilter, scenarioFilter)
	if err != nil {
		return 0, err
	}
	refreshed := 0
	for _, dir := range dirs {
		fixturePath := filepath.Join(dir, "ems_fixture.json")
		if _, err := os.Stat(fixturePath); err != nil {
			continue
		}
		result, err := s.Solve(ctx, fixturePath)
		if err != nil {
			return refreshed, fmt.Errorf("refresh %s: %w", dir, err)
		}
		if err := writePlanAndHash(dir, result); err != nil {
			return refreshed, err
		}
		refreshed++
	}
	return refreshed, nil
}

// ScenarioReportEntry summarizes one recorded scenario's stored plan.
type ScenarioReportEntry struct {
	Fixture   string  `json:"fixture"`
	Scenario  string  `json:"scenario"`
	Status    string  `json:"status"`
	Objective float64 `json:"objective"`
	Slots     int     `json:"slots"`
}

// ScenarioReport aggregates the stored ems_plan.json of every recorded
// scenario matching fixtureFilter (empty matches every fixture).
func ScenarioReport(fixtureFilter string) ([]ScenarioReportEntry, error) {
	dirs, err := scenarioDirs(fixtureFilter, "")
	if err != nil {
		return nil, err
	}
	entries := make([]ScenarioReportEntry, 0, len(dirs))
	for _, dir := range dirs {
		data, err := os.ReadFile(filepath.Join(dir, "ems_plan.json"))
		if err != nil {
			continue
		}
		var p plan.Plan
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("parse %s: %w", dir, err)
		}
		rel, err := filepath.Rel(fixturesRoot, dir)
		if err != nil {
			rel = dir
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		fixture, scenario := parts[0], ""
		if len(parts) > 1 {
			scenario = parts[1]
		}
		entries = append(entries, ScenarioReportEntry{
			Fixture:   fixture,
			Scenario:  scenario,
			Status:    p.Status,
			Objective: p.Objective,
			Slots:     len(p.Slots),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Fixture != entries[j].Fixture {
			return entries[i].Fixture < entries[j].Fixture
		}
		return entries[i].Scenario < entries[j].Scenario
	})
	return entries, nil
}

func writePlanAndHash(dir string, p *plan.Plan) error {
	payload, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "ems_plan.json"), payload, 0o644); err != nil {
		return err
	}
	sum := sha256.Sum256(payload)
	return os.WriteFile(filepath.Join(dir, "ems_plan.hash"), []byte(hex.EncodeToString(sum[:])), 0o644)
}

// scenarioDirs walks fixturesRoot for <fixture>/<scenario> directories,
// filtering on either component when the matching filter is non-empty.
func scenarioDirs(fixtureFilter, scenarioFilter string) ([]string, error) {
	var dirs []string
	root := fixturesRoot
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return dirs, nil
	}
	fixtureEntries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	for _, fe := range fixtureEntries {
		if !fe.IsDir() || (fixtureFilter != "" && fe.Name() != fixtureFilter) {
			continue
		}
		scenarioEntries, err := os.ReadDir(filepath.Join(root, fe.Name()))
		if err != nil {
			return nil, err
		}
		for _, se := range scenarioEntries {
			if !se.IsDir() || (scenarioFilter != "" && se.Name() != scenarioFilter) {
				continue
			}
			dirs = append(dirs, filepath.Join(root, fe.Name(), se.Name()))
		}
	}
	return dirs, nil
}
