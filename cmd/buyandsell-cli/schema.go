package main

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/invopop/jsonschema"
	"github.com/maruel/buyandsell/internal/server/dto"
	"github.com/maruel/ksid"
	"github.com/spf13/cobra"
)

// requestTypes are the JSON bodies accepted by the API, by route.
var requestTypes = []struct {
	route string
	value any
}{
	{"POST /api/users/register", &dto.RegisterRequest{}},
	{"POST /api/users/login", &dto.LoginRequest{}},
	{"POST /api/categories", &dto.CreateCategoryRequest{}},
	{"POST /api/offers", &dto.CreateOfferRequest{}},
	{"PATCH /api/offers/{id}", &dto.UpdateOfferRequest{}},
	{"POST /api/offers/{id}/comments", &dto.CreateCommentRequest{}},
}

func newSchemaCommand() *cobra.Command {
	var route string
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of the API request bodies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := &jsonschema.Reflector{Anonymous: true, DoNotReference: true, ExpandedStruct: true, Mapper: mapIDs}
			out := map[string]*jsonschema.Schema{}
			for _, t := range requestTypes {
				if route != "" && route != t.route {
					continue
				}
				out[t.route] = r.Reflect(t.value)
			}
			if len(out) == 0 {
				return fmt.Errorf("unknown route %q", route)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().StringVar(&route, "route", "", `Only print this route, e.g. "POST /api/offers"`)
	return cmd
}

var idType = reflect.TypeFor[ksid.ID]()

// mapIDs describes IDs as they appear on the wire.
func mapIDs(t reflect.Type) *jsonschema.Schema {
	if t == idType {
		return &jsonschema.Schema{Type: "string", Description: "Sortable unique identifier"}
	}
	return nil
}
