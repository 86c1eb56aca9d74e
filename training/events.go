package training

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// EventFileName is the single event log file inside a run's event
// directory.
const EventFileName = "events.pb"

// EventWriter appends scalar training events to a length-delimited
// protobuf log. Each record is a varint length followed by a serialized
// Struct with tag, step, value and wall_time fields.
type EventWriter struct {
	f *os.File
}

// NewEventWriter opens (or creates) the event log inside dir.
func NewEventWriter(dir string) (*EventWriter, error) {
	f, err := os.OpenFile(filepath.Join(dir, EventFileName), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "opening event log")
	}
	return &EventWriter{f: f}, nil
}

// WriteScalar appends one scalar observation.
func (w *EventWriter) WriteScalar(tag string, step int, value float64) error {
	record, err := structpb.NewStruct(map[string]interface{}{
		"tag":       tag,
		"step":      step,
		"value":     value,
		"wall_time": float64(time.Now().UnixNano()) / 1e9,
	})
	if err != nil {
		return errors.Wrap(err, "building event record")
	}
	data, err := proto.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "encoding event record")
	}
	buf := protowire.AppendVarint(nil, uint64(len(data)))
	buf = append(buf, data...)
	if _, err := w.f.Write(buf); err != nil {
		return errors.Wrap(err, "writing event record")
	}
	return nil
}

// Close flushes and closes the event log.
func (w *EventWriter) Close() error {
	return w.f.Close()
}

// ScalarEvent is one decoded record from an event log.
type ScalarEvent struct {
	Tag      string
	Step     int
	Value    float64
	WallTime float64
}

// ReadEvents decodes every record of an event log, mainly for inspection
// and tests.
func ReadEvents(path string) ([]ScalarEvent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading event log")
	}
	var out []ScalarEvent
	for len(data) > 0 {
		size, n := protowire.ConsumeVarint(data)
		if n < 0 {
			return nil, errors.New("corrupt event log: bad length prefix")
		}
		data = data[n:]
		if uint64(len(data)) < size {
			return nil, errors.New("corrupt event log: truncated record")
		}
		var record structpb.Struct
		if err := proto.Unmarshal(data[:size], &record); err != nil {
			return nil, errors.Wrap(err, "decoding event record")
		}
		data = data[size:]
		fields := record.GetFields()
		out = append(out, ScalarEvent{
			Tag:      fields["tag"].GetStringValue(),
			Step:     int(fields["step"].GetNumberValue()),
			Value:    fields["value"].GetNumberValue(),
			WallTime: fields["wall_time"].GetNumberValue(),
		})
	}
	return out, nil
}
