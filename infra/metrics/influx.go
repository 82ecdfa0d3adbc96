package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/emsplanner/core/metrics"
	"github.com/kilianp07/emsplanner/infra/logger"
)

// InfluxSink writes planning-cycle results and per-slot economics to an
// InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordPlan writes one planning cycle's outcome as a line-protocol point.
func (s *InfluxSink) RecordPlan(result coremetrics.PlanResult) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("ems_plan").
		AddTag("status", result.Status).
		AddField("horizon_slots", result.Horizon).
		AddField("objective", round3(result.Objective)).
		AddField("solve_duration_ms", round3(result.SolveDuration.Seconds()*1000)).
		SetTime(result.GeneratedAt)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordInfeasible writes a failed planning cycle.
func (s *InfluxSink) RecordInfeasible(ev coremetrics.InfeasibleEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("ems_plan_infeasible").
		AddField("reason", ev.Reason).
		SetTime(ev.GeneratedAt)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordEco writes each slot's realized grid economics as one point.
func (s *InfluxSink) RecordEco(slots []coremetrics.SlotEconomics) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, sl := range slots {
		p := write.NewPointWithMeasurement("ems_slot_economics").
			AddField("duration_s", round3(sl.DurationS)).
			AddField("grid_import_kw", round3(sl.GridImportKW)).
			AddField("grid_export_kw", round3(sl.GridExportKW)).
			AddField("segment_cost_eur", round3(sl.SegmentCostEUR)).
			SetTime(sl.Start)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
