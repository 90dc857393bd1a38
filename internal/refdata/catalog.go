// Package refdata describes the reference entity kinds: their tables, fields,
// composite key derivation and the survey columns they are seeded from.
package refdata

import "fmt"

// SurveyTable is the wide survey table reference rows are ingested from.
const SurveyTable = "Survey_Standardized"

// FieldType is the storage type of a reference field.
type FieldType int

const (
	Text FieldType = iota
	Integer
	Numeric
)

// String returns the lowercase type name.
func (t FieldType) String() string {
	switch t {
	case Integer:
		return "integer"
	case Numeric:
		return "numeric"
	default:
		return "text"
	}
}

// IsNumber reports whether the type holds numbers.
func (t FieldType) IsNumber() bool {
	return t == Integer || t == Numeric
}

// Field is one column of a reference table.
type Field struct {
	// Name is the JSON field name used by the API.
	Name   string
	Column string
	Type   FieldType
	// Required fields must be present and non-zero on add and update.
	Required bool
	// ZeroIsMissing fields store zero as NULL and count zero as missing data.
	ZeroIsMissing bool
}

// Source is a group of columns whose distinct values seed one reference
// row each. Columns are listed in the kind's natural key order.
type Source struct {
	Table   string
	Columns []string
}

// Kind describes one reference entity kind.
type Kind struct {
	// Name is the singular route stem, e.g. "fertilizer_cost".
	Name string
	// Plural is the collection route stem, e.g. "fertilizer_costs".
	Plural string
	Table  string
	// KeyColumn holds the composite key. For single-field keys it is the
	// natural field's own column.
	KeyColumn string
	Fields    []Field
	// NaturalKey lists the JSON names of the key fields in key order.
	NaturalKey []string
	// DeleteField is the JSON field of the legacy bulk delete and
	// DeleteColumn the column it matches.
	DeleteField  string
	DeleteColumn string
	Sources      []Source
}

// Field returns the field with the given JSON name.
func (k *Kind) Field(name string) (Field, bool) {
	for _, f := range k.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// HasKeyColumn reports whether the key is stored in a column of its own
// rather than in the single natural key field.
func (k *Kind) HasKeyColumn() bool {
	for _, f := range k.Fields {
		if f.Column == k.KeyColumn {
			return false
		}
	}
	return true
}

// Columns returns every column of the table in declaration order, ending
// with the key column when it is separate.
func (k *Kind) Columns() []string {
	cols := make([]string, 0, len(k.Fields)+1)
	for _, f := range k.Fields {
		cols = append(cols, f.Column)
	}
	if k.HasKeyColumn() {
		cols = append(cols, k.KeyColumn)
	}
	return cols
}

// KeyFields returns the natural key fields in key order.
func (k *Kind) KeyFields() []Field {
	out := make([]Field, 0, len(k.NaturalKey))
	for _, name := range k.NaturalKey {
		f, _ := k.Field(name)
		out = append(out, f)
	}
	return out
}

var (
	originField = Field{Name: "survey_origin", Column: "survey_origin", Type: Text, Required: true}
	yearField   = Field{Name: "survey_year", Column: "survey_year", Type: Integer, Required: true}
)

func survey(cols ...string) Source {
	return Source{Table: SurveyTable, Columns: cols}
}

// slotSources builds one source per survey slot column, prefixed by the
// given leading columns.
func slotSources(lead []string, slots ...string) []Source {
	out := make([]Source, 0, len(slots))
	for _, s := range slots {
		cols := append(append([]string{}, lead...), s)
		out = append(out, survey(cols...))
	}
	return out
}

var fertilizerSlots = []string{
	"synthetic_fertilizer_last_year_1_name",
	"synthetic_fertilizer_last_year_2_name",
	"synthetic_fertilizer_last_year_3_name",
	"synthetic_fertilizer_last_year_4_name",
	"synthetic_fertilizer_last_year_other_name",
	"organic_fertilizer_last_year_1_name",
	"organic_fertilizer_last_year_2_name",
}

var agrochemicalSlots = []string{
	"agrochemicals_applied_1_name",
	"agrochemicals_applied_2_name",
	"agrochemicals_applied_3_name",
}

var unitSlots = []string{
	"synthetic_fertilizer_last_year_1_unit",
	"synthetic_fertilizer_last_year_2_unit",
	"synthetic_fertilizer_last_year_3_unit",
	"synthetic_fertilizer_last_year_4_unit",
	"synthetic_fertilizer_last_year_other_unit",
	"organic_fertilizer_last_year_1_unit",
	"organic_fertilizer_last_year_2_unit",
	"mulch_applied_unit",
	"agrochemicals_applied_1_unit",
	"agrochemicals_applied_2_unit",
	"agrochemicals_applied_3_unit",
}

// yearOrigin is the leading key order shared by the cost kinds.
var yearOrigin = []string{"survey_year", "survey_origin"}

var catalog = []*Kind{
	{
		Name:      "fertilizer",
		Plural:    "fertilizers",
		Table:     "appFertilizerData",
		KeyColumn: "fertilizer_reported_name",
		Fields: []Field{
			{Name: "fertilizer_name", Column: "fertilizer_reported_name", Type: Text, Required: true},
			{Name: "n_content", Column: "fertilizer_n_content", Type: Numeric, ZeroIsMissing: true},
			{Name: "p_content", Column: "fertilizer_p_content", Type: Numeric, ZeroIsMissing: true},
			{Name: "k_content", Column: "fertilizer_k_content", Type: Numeric, ZeroIsMissing: true},
			{Name: "f_type", Column: "fertilizer_type", Type: Text},
		},
		NaturalKey:   []string{"fertilizer_name"},
		DeleteField:  "fertilizer_name",
		DeleteColumn: "fertilizer_reported_name",
		Sources:      slotSources(nil, fertilizerSlots...),
	},
	{
		Name:      "agrochemical",
		Plural:    "agrochemicals",
		Table:     "appAgrochemicalData",
		KeyColumn: "reported_agrochemical_name",
		Fields: []Field{
			{Name: "agrochemical_name", Column: "reported_agrochemical_name", Type: Text, Required: true},
			{Name: "agrochemical_type", Column: "agrochemical_type", Type: Text, Required: true},
			{Name: "active_ingredient_count", Column: "agrochemical_active_ingredient_count", Type: Integer, Required: true},
			{Name: "active_ingredient_name", Column: "agrochemical_active_ingredient_name", Type: Text, Required: true},
			{Name: "active_ingredient_percentage", Column: "agrochemical_active_ingredient_percentage", Type: Numeric, Required: true},
		},
		NaturalKey:   []string{"agrochemical_name"},
		DeleteField:  "agrochemical_name",
		DeleteColumn: "reported_agrochemical_name",
		Sources:      slotSources(nil, agrochemicalSlots...),
	},
	{
		Name:      "fertilizer_cost",
		Plural:    "fertilizer_costs",
		Table:     "appFertilizerCostData",
		KeyColumn: "survey_year_origin_fertilizer_item_name",
		Fields: []Field{
			originField,
			yearField,
			{Name: "fertilizer_item_name", Column: "fertilizer_item_name", Type: Text, Required: true},
			{Name: "fertilizer_item_price_lc", Column: "fertilizer_item_price_lc", Type: Numeric, Required: true},
			{Name: "fertilizer_item_price_unit", Column: "fertilizer_item_price_unit", Type: Text, Required: true},
		},
		NaturalKey:   []string{"survey_year", "survey_origin", "fertilizer_item_name"},
		DeleteField:  "fertilizer_item_name",
		DeleteColumn: "fertilizer_item_name",
		Sources:      slotSources(yearOrigin, fertilizerSlots...),
	},
	{
		Name:      "agrochemical_cost",
		Plural:    "agrochemical_costs",
		Table:     "appAgrochemicalCostData",
		KeyColumn: "survey_year_origin_agrochemical_item_name",
		Fields: []Field{
			originField,
			yearField,
			{Name: "agrochemical_item_name", Column: "agrochemical_item_name", Type: Text, Required: true},
			{Name: "agrochemical_item_price_lc", Column: "agrochemical_item_price_lc", Type: Numeric, Required: true},
			{Name: "agrochemical_item_price_unit", Column: "agrochemical_item_price_unit", Type: Text, Required: true},
		},
		NaturalKey:   []string{"survey_year", "survey_origin", "agrochemical_item_name"},
		DeleteField:  "agrochemical_item_name",
		DeleteColumn: "agrochemical_item_name",
		Sources:      slotSources(yearOrigin, agrochemicalSlots...),
	},
	{
		Name:      "labor_cost",
		Plural:    "labor_costs",
		Table:     "appLaborCostData",
		KeyColumn: "survey_year_origin_laborer_activity_name",
		Fields: []Field{
			originField,
			yearField,
			{Name: "laborer_activity_name", Column: "laborer_activity_name", Type: Text, Required: true},
			{Name: "laborer_activity_cost_per_day", Column: "laborer_activity_cost_per_day", Type: Numeric, Required: true},
		},
		NaturalKey:   []string{"survey_year", "survey_origin", "laborer_activity_name"},
		DeleteField:  "laborer_activity_name",
		DeleteColumn: "laborer_activity_name",
		Sources: slotSources(yearOrigin,
			"laborers_fly_season_activity",
			"laborers_main_season_activity",
			"laborers_last_season_activity",
		),
	},
	{
		Name:      "seedling_cost",
		Plural:    "seedling_costs",
		Table:     "appSeedlingCostData",
		KeyColumn: "survey_year_origin_seedling_item_name",
		Fields: []Field{
			originField,
			yearField,
			{Name: "seedling_item_name", Column: "seedling_item_name", Type: Text, Required: true},
			{Name: "seedling_item_price_lc", Column: "seedling_item_price_lc", Type: Numeric, Required: true},
		},
		NaturalKey:   []string{"survey_year", "survey_origin", "seedling_item_name"},
		DeleteField:  "seedling_item_name",
		DeleteColumn: "seedling_item_name",
		Sources:      slotSources(yearOrigin, "seedlings_bought_last_year_type"),
	},
	{
		Name:      "origin_economics_data",
		Plural:    "origin_economics_data",
		Table:     "appOriginEconomicsData",
		KeyColumn: "survey_year_origin",
		Fields: []Field{
			originField,
			yearField,
			{Name: "origin_living_income_benchmark_lc", Column: "origin_living_income_benchmark_lc", Type: Numeric, Required: true},
			{Name: "origin_currency", Column: "origin_currency", Type: Text, Required: true},
			{Name: "origin_currency_to_usd", Column: "origin_currency_to_usd", Type: Numeric, Required: true},
		},
		NaturalKey:   yearOrigin,
		DeleteField:  "survey_year_origin",
		DeleteColumn: "survey_year_origin",
		Sources:      []Source{survey("survey_year", "survey_origin")},
	},
	{
		Name:      "survey_master_data",
		Plural:    "survey_master_data",
		Table:     "appSurveyMasterData",
		KeyColumn: "survey_id",
		Fields: []Field{
			originField,
			{Name: "survey_coffee_type", Column: "survey_coffee_type", Type: Text, Required: true},
			{Name: "survey_supply_chain", Column: "survey_supply_chain", Type: Text, Required: true},
			yearField,
			{Name: "total_number_of_farmers_in_the_supply_chain", Column: "total_number_of_farmers_in_the_supply_chain", Type: Integer, Required: true},
			{Name: "number_of_survey_plots_part_of_deforestation_analysis", Column: "number_of_survey_plots_part_of_deforestation_analysis", Type: Integer, Required: true},
		},
		NaturalKey:   []string{"survey_origin", "survey_year", "survey_coffee_type", "survey_supply_chain"},
		DeleteField:  "survey_id",
		DeleteColumn: "survey_id",
		Sources:      []Source{survey("survey_origin", "survey_year", "survey_coffee_type", "survey_supply_chain")},
	},
	{
		Name:      "unit_conversion_data",
		Plural:    "unit_conversion_data",
		Table:     "appUnitConversionData",
		KeyColumn: "reported_unit_name",
		Fields: []Field{
			{Name: "reported_unit_name", Column: "reported_unit_name", Type: Text, Required: true},
			{Name: "reported_unit_amount", Column: "reported_unit_amount", Type: Numeric, Required: true},
			{Name: "reported_unit_type", Column: "reported_unit_type", Type: Text, Required: true},
		},
		NaturalKey:   []string{"reported_unit_name"},
		DeleteField:  "reported_unit_name",
		DeleteColumn: "reported_unit_name",
		// Price units come from the cost tables, so this kind ingests last.
		Sources: append(slotSources(nil, unitSlots...),
			Source{Table: "appAgrochemicalCostData", Columns: []string{"agrochemical_item_price_unit"}},
			Source{Table: "appFertilizerCostData", Columns: []string{"fertilizer_item_price_unit"}},
		),
	},
}

var byName = func() map[string]*Kind {
	m := make(map[string]*Kind, 2*len(catalog))
	for _, k := range catalog {
		m[k.Name] = k
		m[k.Plural] = k
	}
	return m
}()

// All returns every kind in catalog order. Ingesting in this order seeds
// the cost tables before the unit conversions that read them.
func All() []*Kind {
	out := make([]*Kind, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup finds a kind by its singular or plural name.
func Lookup(name string) (*Kind, error) {
	k, ok := byName[name]
	if !ok {
		return nil, fmt.Errorf("unknown reference kind %q", name)
	}
	return k, nil
}

// Names returns the singular name of every kind in catalog order.
func Names() []string {
	out := make([]string, len(catalog))
	for i, k := range catalog {
		out[i] = k.Name
	}
	return out
}
