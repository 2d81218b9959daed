package report

import (
	"fmt"
	"strings"

	"github.com/bcaldwell/cardsync/pkg/pipeline"
	influx "github.com/influxdata/influxdb/client/v2"
	"k8s.io/klog"
)

// InfluxReporter writes one point per cardholder run.
type InfluxReporter struct {
	client      influx.Client
	database    string
	measurement string
}

func CreateInfluxClient(endpoint, username, password string) (influx.Client, error) {
	return influx.NewHTTPClient(influx.HTTPConfig{
		Addr:     endpoint,
		Username: username,
		Password: password,
	})
}

func NewInfluxReporter(client influx.Client, database, measurement string) (*InfluxReporter, error) {
	if err := CreateDatabase(client, database); err != nil {
		return nil, fmt.Errorf("Error creating DB: %s", err.Error())
	}

	return &InfluxReporter{client: client, database: database, measurement: measurement}, nil
}

func CreateDatabase(influxClient influx.Client, name string) error {
	name = strings.Split(name, " ")[0]

	createCommand := fmt.Sprintf("CREATE DATABASE %s", name)

	q := influx.NewQuery(createCommand, "", "")
	response, err := influxClient.Query(q)
	if err != nil {
		return err
	}
	return response.Error()
}

func (r *InfluxReporter) Report(results []pipeline.RunResult) error {
	bp, err := r.points(results)
	if err != nil {
		return err
	}

	if err := r.client.Write(bp); err != nil {
		return fmt.Errorf("Error writing to influx: %s", err.Error())
	}

	klog.Infof("Wrote %d run results to influx database %s\n", len(results), r.database)
	return nil
}

func (r *InfluxReporter) points(results []pipeline.RunResult) (influx.BatchPoints, error) {
	bp, err := influx.NewBatchPoints(influx.BatchPointsConfig{
		Database:  r.database,
		Precision: "s",
	})
	if err != nil {
		return nil, fmt.Errorf("Error creating InfluxDB point batch: %s", err.Error())
	}

	for _, result := range results {
		tags := map[string]string{
			"cardholder": result.Cardholder,
			"mode":       result.Mode.String(),
		}
		fields := map[string]interface{}{
			"extracted":         result.Extracted,
			"mapped":            result.Mapped,
			"valid":             result.Valid,
			"duplicates":        result.Duplicates,
			"unique":            result.Unique,
			"uploaded":          result.Uploaded,
			"already_in_ledger": result.AlreadyInLedger,
			"recorded":          result.Recorded,
			"success":           result.Success,
			"degraded":          result.Degraded,
			"duration":          result.Duration.Seconds(),
		}

		pt, err := influx.NewPoint(r.measurement, tags, fields, result.StartedAt)
		if err != nil {
			return nil, fmt.Errorf("Error adding new point: %s", err.Error())
		}
		bp.AddPoint(pt)
	}

	return bp, nil
}
