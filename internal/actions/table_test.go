// internal/actions/table_test.go
package actions_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/browserpilot/browserpilot/api/schemas"
	"github.com/browserpilot/browserpilot/internal/actions"
)

const tableFixtureHTML = `<html><body>
  <table>
    <thead><tr><th>Name</th><th>Stars</th></tr></thead>
    <tbody>
      <tr><td>alpha</td><td>120</td></tr>
      <tr><td>beta
           project</td><td>7</td></tr>
    </tbody>
  </table>
  <p>between tables</p>
  <table>
    <tr><td>only</td><td>row</td></tr>
  </table>
</body></html>`

func TestTableExtraction(t *testing.T) {
	t.Parallel()

	t.Run("each table becomes one sheet", func(t *testing.T) {
		t.Parallel()
		deps := newTestDeps(t)
		deps.Page = &fakePage{html: tableFixtureHTML}
		extract := builtin(t, deps, actions.NameTableExtraction)

		ack, err := extract.Execute(context.Background(), schemas.ActionArgs{
			TaskSeq: 2, Filename: "repos.xlsx",
		})
		require.NoError(t, err)
		assert.Contains(t, ack, "2 table(s)")

		book, err := excelize.OpenFile(filepath.Join(deps.Layout.TablesDir(), "repos.xlsx"))
		require.NoError(t, err)
		defer book.Close()

		assert.Equal(t, []string{"Table1", "Table2"}, book.GetSheetList())

		rows, err := book.GetRows("Table1")
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, []string{"Name", "Stars"}, rows[0])
		assert.Equal(t, []string{"alpha", "120"}, rows[1])
		assert.Equal(t, []string{"beta project", "7"}, rows[2], "cell text is whitespace-collapsed")

		rows, err = book.GetRows("Table2")
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, []string{"only", "row"}, rows[0])
	})

	t.Run("page without tables fails", func(t *testing.T) {
		t.Parallel()
		deps := newTestDeps(t)
		deps.Page = &fakePage{html: "<html><body><p>plain text</p></body></html>"}
		extract := builtin(t, deps, actions.NameTableExtraction)

		_, err := extract.Execute(context.Background(), schemas.ActionArgs{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no tables")
	})

	t.Run("extension is appended when missing", func(t *testing.T) {
		t.Parallel()
		deps := newTestDeps(t)
		deps.Page = &fakePage{html: tableFixtureHTML}
		extract := builtin(t, deps, actions.NameTableExtraction)

		ack, err := extract.Execute(context.Background(), schemas.ActionArgs{Filename: "plain"})
		require.NoError(t, err)
		assert.Contains(t, ack, "plain.xlsx")
	})
}

func TestParseTablesNested(t *testing.T) {
	t.Parallel()
	deps := newTestDeps(t)
	deps.Page = &fakePage{html: `<html><body><table>
      <tr><td>outer <table><tr><td>inner</td></tr></table></td><td>b</td></tr>
    </table></body></html>`}
	extract := builtin(t, deps, actions.NameTableExtraction)

	ack, err := extract.Execute(context.Background(), schemas.ActionArgs{Filename: "nested.xlsx"})
	require.NoError(t, err)
	assert.Contains(t, ack, "1 table(s)", "nested tables fold into the enclosing cell")

	book, err := excelize.OpenFile(filepath.Join(deps.Layout.TablesDir(), "nested.xlsx"))
	require.NoError(t, err)
	defer book.Close()

	rows, err := book.GetRows("Table1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"outer inner", "b"}, rows[0])
}
