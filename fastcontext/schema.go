package fastcontext

const (
	// RootConceptType terminates every type hierarchy walk.
	RootConceptType = "Annotation"
	// AnyConceptType declares features that every concept type carries.
	AnyConceptType = "ANY"
)

// Schema describes the features of concept types and the values each feature
// can take. The first declared value of a feature is its default, later
// values have higher priority.
type Schema struct {
	conceptFeatures map[string][]string
	featureDefaults map[string]string
	valueFeature    map[string]string
	values          []string
	weights         map[string]int
}

func NewSchema() *Schema {
	return &Schema{
		conceptFeatures: make(map[string][]string),
		featureDefaults: make(map[string]string),
		valueFeature:    make(map[string]string),
		weights:         make(map[string]int),
	}
}

// DeclareConcept sets the feature names of a concept type.
func (schema *Schema) DeclareConcept(conceptType string, features ...string) {
	schema.conceptFeatures[conceptType] = append([]string(nil), features...)
}

// DeclareValues sets the ordered values of a feature, values[0] is the default.
func (schema *Schema) DeclareValues(feature string, values ...string) {
	if len(values) == 0 {
		return
	}
	schema.featureDefaults[feature] = values[0]
	for _, value := range values {
		if _, seen := schema.valueFeature[value]; !seen {
			schema.values = append(schema.values, value)
		}
		schema.valueFeature[value] = feature
	}
}

func (schema *Schema) HasValues() bool {
	return len(schema.values) > 0
}

func (schema *Schema) FeatureOf(value string) (string, bool) {
	feature, ok := schema.valueFeature[value]
	return feature, ok
}

func (schema *Schema) DefaultValue(feature string) string {
	return schema.featureDefaults[feature]
}

// Weight is the position of a value inside its feature value list.
func (schema *Schema) Weight(value string) int {
	return schema.weights[value]
}

func (schema *Schema) ConceptTypes() []string {
	types := make([]string, 0, len(schema.conceptFeatures))
	for conceptType := range schema.conceptFeatures {
		types = append(types, conceptType)
	}
	return types
}

func (schema *Schema) computeWeights() {
	schema.weights = make(map[string]int, len(schema.values))
	weight := 0
	current := ""
	for i, value := range schema.values {
		feature := schema.valueFeature[value]
		if i == 0 || feature != current {
			current = feature
			weight = 0
		}
		schema.weights[value] = weight
		weight++
	}
}

func (schema *Schema) clone() *Schema {
	cp := NewSchema()
	for k, v := range schema.conceptFeatures {
		cp.conceptFeatures[k] = append([]string(nil), v...)
	}
	for k, v := range schema.featureDefaults {
		cp.featureDefaults[k] = v
	}
	for k, v := range schema.valueFeature {
		cp.valueFeature[k] = v
	}
	cp.values = append(cp.values, schema.values...)
	return cp
}

// features resolves the feature list of a concept type. It walks up the
// hierarchy until a declared type or the root is reached, then appends the
// features shared by all types.
func (schema *Schema) features(conceptType string, hierarchy map[string]string) ([]string, bool) {
	name := conceptType
	visited := make(map[string]bool)
	for {
		if _, ok := schema.conceptFeatures[name]; ok || name == RootConceptType || visited[name] {
			break
		}
		visited[name] = true
		parent, ok := hierarchy[name]
		if !ok || parent == "" {
			name = RootConceptType
			break
		}
		name = parent
	}

	own, found := schema.conceptFeatures[name]
	var shared []string
	if common, ok := schema.conceptFeatures[AnyConceptType]; ok {
		shared = common
	} else if name != RootConceptType {
		shared = schema.conceptFeatures[RootConceptType]
	}
	if !found && len(shared) == 0 {
		return nil, false
	}

	features := make([]string, 0, len(own)+len(shared))
	seen := make(map[string]bool, len(own)+len(shared))
	for _, list := range [][]string{own, shared} {
		for _, feature := range list {
			if !seen[feature] {
				seen[feature] = true
				features = append(features, feature)
			}
		}
	}
	return features, true
}
