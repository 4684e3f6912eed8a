package influx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	influx "github.com/influxdata/influxdb/client/v2"

	"github.com/i474232898/weather-ingest/internal/ingest"
)

// MetadataMeasurement receives one point per saved signal descriptor.
const MetadataMeasurement = "signal_metadata"

// Config selects the InfluxDB 1.x server and target series.
type Config struct {
	Addr        string
	Username    string
	Password    string
	Database    string
	Measurement string
	// Tags are attached to every data point, e.g. {"location": "Trondheim"}.
	Tags    map[string]string
	Timeout time.Duration
}

// Writer stores canonical records and signal metadata in InfluxDB.
type Writer struct {
	client      influx.Client
	database    string
	measurement string
	tags        map[string]string
}

func New(cfg Config) (*Writer, error) {
	c, err := influx.NewHTTPClient(influx.HTTPConfig{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		Timeout:  cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create influx client: %w", err)
	}
	return &Writer{
		client:      c,
		database:    cfg.Database,
		measurement: cfg.Measurement,
		tags:        cfg.Tags,
	}, nil
}

// Insert writes the record as a single point at the record's timestamp.
func (w *Writer) Insert(_ context.Context, rec ingest.CanonicalRecord) (ingest.Ack, error) {
	ts, err := time.Parse(time.RFC3339, rec.Timestamp)
	if err != nil {
		return ingest.Ack{}, fmt.Errorf("%w: timestamp %q: %v", ingest.ErrStoreRejected, rec.Timestamp, err)
	}

	fields := make(map[string]interface{}, len(rec.Series))
	for id, v := range rec.Series {
		fields[id] = v
	}

	bp, err := w.batch()
	if err != nil {
		return ingest.Ack{}, err
	}
	p, err := influx.NewPoint(w.measurement, copyTags(w.tags), fields, ts)
	if err != nil {
		return ingest.Ack{}, fmt.Errorf("%w: %v", ingest.ErrStoreRejected, err)
	}
	bp.AddPoint(p)

	return w.write(bp)
}

// SaveSignals writes one metadata point per descriptor, with enum labels as
// enum_<code> fields. createOnly is not supported by InfluxDB and ignored;
// points with identical tags and time overwrite each other.
func (w *Writer) SaveSignals(_ context.Context, inputs map[string]ingest.SignalDescriptor, _ bool) (ingest.Ack, error) {
	bp, err := w.batch()
	if err != nil {
		return ingest.Ack{}, err
	}

	now := time.Now()
	for input, d := range inputs {
		tags := map[string]string{
			"signal": d.Name,
			"type":   string(d.Type),
			"input":  input,
		}
		fields := make(map[string]interface{}, len(d.EnumValues)+1)
		for code, label := range d.EnumValues {
			fields["enum_"+strconv.Itoa(code)] = label
		}
		if len(fields) == 0 {
			fields["declared"] = true
		}

		p, err := influx.NewPoint(MetadataMeasurement, tags, fields, now)
		if err != nil {
			return ingest.Ack{}, fmt.Errorf("%w: %v", ingest.ErrStoreRejected, err)
		}
		bp.AddPoint(p)
	}

	return w.write(bp)
}

// Close releases the underlying client.
func (w *Writer) Close() error {
	return w.client.Close()
}

func (w *Writer) batch() (influx.BatchPoints, error) {
	bp, err := influx.NewBatchPoints(influx.BatchPointsConfig{
		Database:  w.database,
		Precision: "s",
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ingest.ErrStoreRejected, err)
	}
	return bp, nil
}

func (w *Writer) write(bp influx.BatchPoints) (ingest.Ack, error) {
	if err := w.client.Write(bp); err != nil {
		return ingest.Ack{}, classify(err)
	}
	body, _ := json.Marshal(map[string]int{"points": len(bp.Points())})
	return ingest.Ack{Store: "influx", Body: body}, nil
}

// classify maps client errors onto the store error kinds. The client only
// exposes non-2xx responses as the raw response body.
func classify(err error) error {
	var urlErr *url.Error
	var netErr net.Error
	switch {
	case errors.As(err, &urlErr), errors.As(err, &netErr):
		return fmt.Errorf("%w: %v", ingest.ErrStoreWrite, err)
	case strings.Contains(err.Error(), "authorization failed"):
		return fmt.Errorf("%w: %v", ingest.ErrStoreAuth, err)
	default:
		return fmt.Errorf("%w: %v", ingest.ErrStoreRejected, err)
	}
}

func copyTags(tags map[string]string) map[string]string {
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		out[k] = v
	}
	return out
}
