package validation

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"sort"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var embeddedSchemas embed.FS

const (
	SchemaAnalysisSnapshot      = "analysis-snapshot"
	SchemaEnhancementFeedback   = "enhancement-feedback"
	SchemaCustomProfileFeedback = "custom-profile-feedback"
	SchemaRecommendationRequest = "recommendation-request"
	SchemaErrorResponse         = "error-response"
)

var schemaFiles = map[string]string{
	SchemaAnalysisSnapshot:      "analysis-snapshot.json",
	SchemaEnhancementFeedback:   "enhancement-feedback.json",
	SchemaCustomProfileFeedback: "custom-profile-feedback.json",
	SchemaRecommendationRequest: "recommendation-request.json",
	SchemaErrorResponse:         "error-response.json",
}

// SchemaValidator checks raw request bodies against JSON schemas before they
// are bound to Go structs.
type SchemaValidator struct {
	schemas map[string]*gojsonschema.Schema
}

func NewSchemaValidator() *SchemaValidator {
	return &SchemaValidator{
		schemas: make(map[string]*gojsonschema.Schema),
	}
}

// NewDefaultSchemaValidator returns a validator loaded with the built-in schemas.
func NewDefaultSchemaValidator() (*SchemaValidator, error) {
	sv := NewSchemaValidator()
	if err := sv.LoadSchemaFromFS(embeddedSchemas, "schemas"); err != nil {
		return nil, err
	}
	return sv, nil
}

// LoadSchemaFromFS loads every known schema from fsys under schemaDir.
func (sv *SchemaValidator) LoadSchemaFromFS(fsys fs.FS, schemaDir string) error {
	for name, filename := range schemaFiles {
		schemaPath := path.Join(schemaDir, filename)

		schemaBytes, err := fs.ReadFile(fsys, schemaPath)
		if err != nil {
			return fmt.Errorf("failed to read schema file %s: %w", schemaPath, err)
		}

		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaBytes))
		if err != nil {
			return fmt.Errorf("failed to load schema %s: %w", name, err)
		}

		sv.schemas[name] = schema
	}

	return nil
}

func (sv *SchemaValidator) ValidateAnalysisSnapshot(data interface{}) *ValidationResult {
	return sv.validate(SchemaAnalysisSnapshot, data)
}

func (sv *SchemaValidator) ValidateEnhancementFeedback(data interface{}) *ValidationResult {
	return sv.validate(SchemaEnhancementFeedback, data)
}

func (sv *SchemaValidator) ValidateCustomProfileFeedback(data interface{}) *ValidationResult {
	return sv.validate(SchemaCustomProfileFeedback, data)
}

func (sv *SchemaValidator) ValidateErrorResponse(data interface{}) *ValidationResult {
	return sv.validate(SchemaErrorResponse, data)
}

// ValidateRecommendationRequest checks the envelope and then the embedded
// analysis snapshot. Snapshot errors are reported under "analysis.".
func (sv *SchemaValidator) ValidateRecommendationRequest(data interface{}) *ValidationResult {
	result := sv.validate(SchemaRecommendationRequest, data)
	if !result.Valid {
		return result
	}

	raw, err := toBytes(data)
	if err != nil {
		return marshalFailure(err)
	}
	var envelope struct {
		Analysis json.RawMessage `json:"analysis"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return marshalFailure(err)
	}

	analysis := sv.validate(SchemaAnalysisSnapshot, []byte(envelope.Analysis))
	for i := range analysis.Errors {
		analysis.Errors[i].Field = "analysis." + analysis.Errors[i].Field
	}
	return analysis
}

func (sv *SchemaValidator) validate(schemaName string, data interface{}) *ValidationResult {
	schema, exists := sv.schemas[schemaName]
	if !exists {
		return &ValidationResult{
			Valid: false,
			Errors: []ValidationError{{
				Field:   "schema",
				Message: fmt.Sprintf("Schema '%s' not found", schemaName),
				Code:    "SCHEMA_NOT_FOUND",
			}},
		}
	}

	raw, err := toBytes(data)
	if err != nil {
		return marshalFailure(err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return &ValidationResult{
			Valid: false,
			Errors: []ValidationError{{
				Field:   "body",
				Message: fmt.Sprintf("Malformed JSON: %v", err),
				Code:    "MALFORMED_JSON",
			}},
		}
	}

	validationResult := &ValidationResult{
		Valid:  result.Valid(),
		Errors: make([]ValidationError, 0),
	}

	for _, err := range result.Errors() {
		validationResult.Errors = append(validationResult.Errors, ValidationError{
			Field:   err.Field(),
			Message: err.Description(),
			Code:    "VALIDATION_ERROR",
			Value:   err.Value(),
			Context: err.Context().String(),
		})
	}

	return validationResult
}

func toBytes(data interface{}) ([]byte, error) {
	switch v := data.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(data)
	}
}

func marshalFailure(err error) *ValidationResult {
	return &ValidationResult{
		Valid: false,
		Errors: []ValidationError{{
			Field:   "data",
			Message: fmt.Sprintf("Failed to marshal data to JSON: %v", err),
			Code:    "JSON_MARSHAL_ERROR",
		}},
	}
}

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Code    string      `json:"code"`
	Value   interface{} `json:"value,omitempty"`
	Context string      `json:"context,omitempty"`
}

func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation error in field '%s': %s", ve.Field, ve.Message)
}

// ToAPIError converts the result to the API error envelope. It returns nil
// for a valid result.
func (vr *ValidationResult) ToAPIError(code string) map[string]interface{} {
	if vr.Valid {
		return nil
	}

	fieldErrors := make(map[string][]string)
	for _, err := range vr.Errors {
		if err.Field != "" {
			fieldErrors[err.Field] = append(fieldErrors[err.Field], err.Message)
		}
	}

	details := map[string]interface{}{
		"validationErrors": vr.Errors,
	}
	if len(fieldErrors) > 0 {
		details["fieldErrors"] = fieldErrors
	}

	return map[string]interface{}{
		"error": map[string]interface{}{
			"code":    code,
			"message": "Request validation failed",
			"details": details,
		},
	}
}

// AvailableSchemas returns the loaded schema names in sorted order.
func (sv *SchemaValidator) AvailableSchemas() []string {
	names := make([]string, 0, len(sv.schemas))
	for name := range sv.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (sv *SchemaValidator) SchemaExists(name string) bool {
	_, exists := sv.schemas[name]
	return exists
}

// SchemaSource returns the raw JSON of a built-in schema.
func SchemaSource(name string) ([]byte, error) {
	filename, ok := schemaFiles[name]
	if !ok {
		return nil, fmt.Errorf("schema %q not found", name)
	}
	return fs.ReadFile(embeddedSchemas, path.Join("schemas", filename))
}
