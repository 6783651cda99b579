// Package divelog holds the dive log entry record and its rule sets.
package divelog

import (
	"time"
)

// Enumerated values. Each is validated against its allowed set by the schemas.
type (
	Material    string
	Suit        string
	Visibility  string
	Current     string
	Weather     string
	Mood        string
	Correctness string
	Trim        string
	Order       string
)

const (
	MaterialAluminum Material = "aluminum"
	MaterialSteel    Material = "steel"

	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// Entry is a single logged dive. Optional fields are pointers so that an
// absent field can be told apart from a zero value when merging updates.
type Entry struct {
	LogID     string     `json:"logId,omitempty"`
	OwnerID   string     `json:"ownerId,omitempty"`
	EntryTime *time.Time `json:"entryTime,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`

	DiveNumber *int       `json:"diveNumber,omitempty"`
	DiveTime   *DiveTime  `json:"diveTime,omitempty"`
	Location   *string    `json:"location,omitempty"`
	Site       *string    `json:"site,omitempty"`
	GPS        *GPS       `json:"gps,omitempty"`
	CNS        *int       `json:"cns,omitempty"`
	Cylinders  []Cylinder `json:"cylinders,omitempty"`
	Depth      *Depth     `json:"depth,omitempty"`
	Exposure   *Exposure  `json:"exposure,omitempty"`
	Equipment  *Equipment `json:"equipment,omitempty"`
	DiveType   *DiveType  `json:"diveType,omitempty"`

	Visibility *Visibility `json:"visibility,omitempty"`
	Current    *Current    `json:"current,omitempty"`
	Weather    *Weather    `json:"weather,omitempty"`
	Mood       *Mood       `json:"mood,omitempty"`
	Weight     *Weight     `json:"weight,omitempty"`
	Notes      *string     `json:"notes,omitempty"`
}

// DiveTime breaks down the timing of a dive. Times are in minutes.
type DiveTime struct {
	ExitTime        *string    `json:"exitTime,omitempty"`
	SurfaceInterval *int       `json:"surfaceInterval,omitempty"`
	BottomTime      *int       `json:"bottomTime,omitempty"`
	DecoStops       []DecoStop `json:"decoStops,omitempty"`
}

// DecoStop is a single decompression stop
type DecoStop struct {
	Depth    float64 `json:"depth"`
	Duration float64 `json:"duration"`
}

type GPS struct {
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// Cylinder is one breathing-gas cylinder carried on the dive
type Cylinder struct {
	Index         *int      `json:"index,omitempty"`
	Material      *Material `json:"material,omitempty"`
	Volume        *float64  `json:"volume,omitempty"`
	StartPressure *float64  `json:"startPressure,omitempty"`
	EndPressure   *float64  `json:"endPressure,omitempty"`
	GasMix        *GasMix   `json:"gasMix,omitempty"`
}

// GasMix holds oxygen and helium percentages; nitrogen is the remainder
type GasMix struct {
	O2 *float64 `json:"o2,omitempty"`
	He *float64 `json:"he,omitempty"`
}

type Depth struct {
	Average *float64 `json:"average,omitempty"`
	Max     *float64 `json:"max,omitempty"`
}

// Exposure describes the exposure-suit profile. Thickness is in millimetres.
type Exposure struct {
	Suit      *Suit    `json:"suit,omitempty"`
	Thickness *float64 `json:"thickness,omitempty"`
	Hood      bool     `json:"hood,omitempty"`
	Gloves    bool     `json:"gloves,omitempty"`
	Boots     bool     `json:"boots,omitempty"`
}

type Equipment struct {
	Computer bool `json:"computer,omitempty"`
	Console  bool `json:"console,omitempty"`
	Light    bool `json:"light,omitempty"`
	Camera   bool `json:"camera,omitempty"`
	Scooter  bool `json:"scooter,omitempty"`
	SMB      bool `json:"smb,omitempty"`
}

type DiveType struct {
	Boat     bool `json:"boat,omitempty"`
	Shore    bool `json:"shore,omitempty"`
	Reef     bool `json:"reef,omitempty"`
	Wreck    bool `json:"wreck,omitempty"`
	Cave     bool `json:"cave,omitempty"`
	Night    bool `json:"night,omitempty"`
	Drift    bool `json:"drift,omitempty"`
	Deep     bool `json:"deep,omitempty"`
	Training bool `json:"training,omitempty"`
	Ice      bool `json:"ice,omitempty"`
}

// Weight records the amount of lead carried and how well it worked out
type Weight struct {
	Amount      *float64     `json:"amount,omitempty"`
	Correctness *Correctness `json:"correctness,omitempty"`
	Trim        *Trim        `json:"trim,omitempty"`
	Notes       *string      `json:"notes,omitempty"`
}

// Merge copies every field present in patch onto e. Nested groups are
// replaced as a whole. Identifiers and timestamps are not touched.
func (e *Entry) Merge(patch *Entry) {
	if patch.EntryTime != nil {
		e.EntryTime = patch.EntryTime
	}
	if patch.DiveNumber != nil {
		e.DiveNumber = patch.DiveNumber
	}
	if patch.DiveTime != nil {
		e.DiveTime = patch.DiveTime
	}
	if patch.Location != nil {
		e.Location = patch.Location
	}
	if patch.Site != nil {
		e.Site = patch.Site
	}
	if patch.GPS != nil {
		e.GPS = patch.GPS
	}
	if patch.CNS != nil {
		e.CNS = patch.CNS
	}
	if patch.Cylinders != nil {
		e.Cylinders = patch.Cylinders
	}
	if patch.Depth != nil {
		e.Depth = patch.Depth
	}
	if patch.Exposure != nil {
		e.Exposure = patch.Exposure
	}
	if patch.Equipment != nil {
		e.Equipment = patch.Equipment
	}
	if patch.DiveType != nil {
		e.DiveType = patch.DiveType
	}
	if patch.Visibility != nil {
		e.Visibility = patch.Visibility
	}
	if patch.Current != nil {
		e.Current = patch.Current
	}
	if patch.Weather != nil {
		e.Weather = patch.Weather
	}
	if patch.Mood != nil {
		e.Mood = patch.Mood
	}
	if patch.Weight != nil {
		e.Weight = patch.Weight
	}
	if patch.Notes != nil {
		e.Notes = patch.Notes
	}
}

const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// ListOptions controls a query over one owner's entries. Before and After
// are exclusive bounds on EntryTime.
type ListOptions struct {
	Limit  int
	Order  Order
	Before *time.Time
	After  *time.Time
}

// Normalize fills in defaults and clamps the limit
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultListLimit
	}
	if o.Limit > MaxListLimit {
		o.Limit = MaxListLimit
	}
	if o.Order != OrderAsc {
		o.Order = OrderDesc
	}
	return o
}

// Includes reports whether t lies strictly inside the bounds
func (o ListOptions) Includes(t time.Time) bool {
	if o.After != nil && !t.After(*o.After) {
		return false
	}
	if o.Before != nil && !t.Before(*o.Before) {
		return false
	}
	return true
}
