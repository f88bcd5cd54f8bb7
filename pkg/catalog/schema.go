// pkg/catalog/schema.go
package catalog

import (
	"fmt"
	"strings"

	"haptic-trainer/internal/common/errors"

	"github.com/xeipuuv/gojsonschema"
)

// Shipped schema file names under the schema directory.
const (
	TasksSchemaFile   = "tasks.schema.json"
	ProfileSchemaFile = "device-profile.schema.json"
)

// validateAgainstSchema runs a document through a JSON schema and folds the
// failures into one catalog error naming the offending source.
func validateAgainstSchema(schema, document gojsonschema.JSONLoader, source string) error {
	result, err := gojsonschema.Validate(schema, document)
	if err != nil {
		return fmt.Errorf("schema validation of %s: %w", source, err)
	}
	if result.Valid() {
		return nil
	}

	descs := make([]string, len(result.Errors()))
	for i, desc := range result.Errors() {
		descs[i] = desc.String()
	}
	return errors.NewCatalogInvalidError(
		fmt.Sprintf("%s: %s", source, strings.Join(descs, "; ")))
}
