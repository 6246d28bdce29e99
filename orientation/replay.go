package orientation

import (
	"fmt"
	"io"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gocarina/gocsv"
)

// AttitudeRecord is one row of a recorded attitude log.
type AttitudeRecord struct {
	Time float64 `csv:"t"`
	W    float32 `csv:"w"`
	X    float32 `csv:"x"`
	Y    float32 `csv:"y"`
	Z    float32 `csv:"z"`
}

// ReplaySource plays back a recorded attitude log, one row per reading,
// looping at the end. It lets the sensor provider run without hardware.
type ReplaySource struct {
	records []AttitudeRecord
	next    int
}

// LoadReplay reads an attitude log from a CSV file with columns t,w,x,y,z.
func LoadReplay(path string) (*ReplaySource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening attitude log: %w", err)
	}
	defer f.Close()
	return ReadReplay(f)
}

// ReadReplay parses an attitude log from r.
func ReadReplay(r io.Reader) (*ReplaySource, error) {
	var records []AttitudeRecord
	if err := gocsv.Unmarshal(r, &records); err != nil {
		return nil, fmt.Errorf("parsing attitude log: %w", err)
	}
	return NewReplaySource(records), nil
}

// NewReplaySource wraps already decoded records.
func NewReplaySource(records []AttitudeRecord) *ReplaySource {
	return &ReplaySource{records: records}
}

// Available reports whether the log has any rows.
func (r *ReplaySource) Available() bool {
	return r != nil && len(r.records) > 0
}

// Attitude returns the next recorded attitude.
func (r *ReplaySource) Attitude() (mgl32.Quat, bool) {
	if !r.Available() {
		return mgl32.QuatIdent(), false
	}
	rec := r.records[r.next]
	r.next = (r.next + 1) % len(r.records)

	q := mgl32.Quat{W: rec.W, V: mgl32.Vec3{rec.X, rec.Y, rec.Z}}
	if q.Len() == 0 {
		return mgl32.QuatIdent(), false
	}
	return q.Normalize(), true
}

// Len returns the number of recorded rows.
func (r *ReplaySource) Len() int {
	if r == nil {
		return 0
	}
	return len(r.records)
}
