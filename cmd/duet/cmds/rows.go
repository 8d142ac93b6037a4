package cmds

import (
	"context"
	"io"

	"github.com/go-go-golems/glazed/pkg/formatters/json"
	"github.com/go-go-golems/glazed/pkg/formatters/table"
	"github.com/go-go-golems/glazed/pkg/formatters/yaml"
	"github.com/go-go-golems/glazed/pkg/middlewares"
	"github.com/go-go-golems/glazed/pkg/types"
	"github.com/pkg/errors"
)

type tableOutputFormatter interface {
	OutputTable(ctx context.Context, t *types.Table, w io.Writer) error
}

func newRowFormatter(output string) (tableOutputFormatter, error) {
	switch output {
	case "json":
		return json.NewOutputFormatter(), nil
	case "yaml", "":
		return yaml.NewOutputFormatter(), nil
	case "table":
		return table.NewOutputFormatter("ascii"), nil
	default:
		return nil, errors.Errorf("unknown output format %q", output)
	}
}

// printRows pushes rows through a glazed table processor and renders the result.
func printRows(ctx context.Context, w io.Writer, rows []types.Row, output string) error {
	of, err := newRowFormatter(output)
	if err != nil {
		return err
	}

	gp := middlewares.NewTableProcessor()
	for _, row := range rows {
		if err := gp.AddRow(ctx, row); err != nil {
			return errors.Wrap(err, "could not add row")
		}
	}
	if err := gp.Close(ctx); err != nil {
		return errors.Wrap(err, "could not finalize rows")
	}
	return of.OutputTable(ctx, gp.GetTable(), w)
}
