package divelog

import (
	"github.com/go-playground/validator/v10"

	"bottomtime/domain/validation"
)

var baseRules = validation.Rules{
	"DiveNumber": "omitempty,min=1",
	"DiveTime":   "omitempty",
	"Location":   "omitempty,max=250",
	"Site":       "omitempty,max=250",
	"GPS":        "omitempty",
	"CNS":        "omitempty,min=0,max=150",
	"Cylinders":  "omitempty,max=10,dive",
	"Depth":      "omitempty",
	"Exposure":   "omitempty",
	"Visibility": "omitempty,oneof=none poor moderate good excellent",
	"Current":    "omitempty,oneof=none mild moderate strong extreme",
	"Weather":    "omitempty,oneof=sunny broken overcast raining stormy",
	"Mood":       "omitempty,oneof=terrible bad ok good excellent",
	"Weight":     "omitempty",
	"Notes":      "omitempty,max=1000",
	"CreatedAt":  "isdefault",
	"UpdatedAt":  "isdefault",
}

var createRules = validation.Extend(baseRules, validation.Rules{
	"LogID":     "isdefault",
	"OwnerID":   "required,uuid",
	"EntryTime": "required",
})

var updateRules = validation.Extend(baseRules, validation.Rules{
	"LogID":     "required,uuid",
	"OwnerID":   "required,uuid",
	"EntryTime": "omitempty",
})

// Rules for nested groups are the same in both variants.
var nestedRules = []validation.TypeRules{
	{Type: DiveTime{}, Rules: validation.Rules{
		"ExitTime":        "omitempty,clock",
		"SurfaceInterval": "omitempty,min=0",
		"BottomTime":      "omitempty,min=0",
		"DecoStops":       "omitempty,max=10,dive",
	}},
	{Type: DecoStop{}, Rules: validation.Rules{
		"Depth":    "gt=0,max=300",
		"Duration": "gt=0,max=600",
	}},
	{Type: GPS{}, Rules: validation.Rules{
		"Latitude":  "required,min=-90,max=90",
		"Longitude": "required,min=-180,max=180",
	}},
	{Type: Cylinder{}, Rules: validation.Rules{
		"Index":         "omitempty,min=0",
		"Material":      "omitempty,oneof=aluminum steel",
		"Volume":        "omitempty,gt=0",
		"StartPressure": "omitempty,min=0",
		"EndPressure":   "omitempty,min=0",
		"GasMix":        "omitempty",
	}},
	{Type: GasMix{}, Rules: validation.Rules{
		"O2": "required,min=1,max=100",
		"He": "omitempty,min=0,max=95",
	}},
	{Type: Depth{}, Rules: validation.Rules{
		"Average": "omitempty,min=0,max=500",
		"Max":     "omitempty,min=0,max=500",
	}},
	{Type: Exposure{}, Rules: validation.Rules{
		"Suit":      "omitempty,oneof=none shorty wetsuit semidry drysuit",
		"Thickness": "omitempty,min=0,max=14",
	}},
	{Type: Weight{}, Rules: validation.Rules{
		"Amount":      "omitempty,min=0",
		"Correctness": "omitempty,oneof=good too-little too-much",
		"Trim":        "omitempty,oneof=good head-down feet-down",
		"Notes":       "omitempty,max=250",
	}},
}

func cylinderPressures(sl validator.StructLevel) {
	c := sl.Current().Interface().(Cylinder)
	if c.StartPressure != nil && c.EndPressure != nil && *c.EndPressure > *c.StartPressure {
		sl.ReportError(*c.EndPressure, "endPressure", "EndPressure", "ltefield", "startPressure")
	}
}

func gasMixTotal(sl validator.StructLevel) {
	g := sl.Current().Interface().(GasMix)
	if g.O2 != nil && g.He != nil && *g.O2+*g.He > 100 {
		sl.ReportError(*g.He, "he", "He", "maxsum", "100")
	}
}

func depthOrder(sl validator.StructLevel) {
	d := sl.Current().Interface().(Depth)
	if d.Average != nil && d.Max != nil && *d.Average > *d.Max {
		sl.ReportError(*d.Average, "average", "Average", "ltefield", "max")
	}
}

var structRules = []validation.StructRule{
	{Fn: cylinderPressures, Types: []interface{}{Cylinder{}}},
	{Fn: gasMixTotal, Types: []interface{}{GasMix{}}},
	{Fn: depthOrder, Types: []interface{}{Depth{}}},
}

func newSchema(name string, entryRules validation.Rules) *validation.Schema {
	rules := append([]validation.TypeRules{{Type: Entry{}, Rules: entryRules}}, nestedRules...)
	return validation.NewSchema(name, rules, structRules...)
}

var (
	// CreateSchema validates a candidate entry before it is first stored
	CreateSchema = newSchema("divelog.create", createRules)
	// UpdateSchema validates a partial entry before it is merged
	UpdateSchema = newSchema("divelog.update", updateRules)
)
