package target

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/John-Robertt/gamefill/internal/browser"
	"github.com/John-Robertt/gamefill/internal/browser/browsertest"
)

var fastTimeouts = browser.Timeouts{
	PageLoad:   time.Second,
	Human:      time.Second,
	Dependents: 200 * time.Millisecond,
	Poll:       5 * time.Millisecond,
}

type recordingPrompter struct {
	fields []string
	err    error
}

func (r *recordingPrompter) CompleteManually(ctx context.Context, field, want string, cause error) error {
	r.fields = append(r.fields, field)
	return r.err
}

const urlTable = "#concepturl_set-group > div > fieldset > table > tbody"

func urlRow(i int) string {
	return fmt.Sprintf(`<tr class="form-row" id="concepturl_set-%d"><td><input type="url" id="id_concepturl_set-%d-url"></td></tr>`, i, i)
}

func conceptForm(rows int) string {
	var b strings.Builder
	b.WriteString(`<html><head><title>Add concept</title></head><body><form id="concept_form">
<input type="text" id="id_distinctive_name">
<select id="id_primary_nature"><option value="">---------</option><option value="1">Game</option></select>
<ul id="id_partial_date_precision"><li><label><input type="radio" value="D"> Day</label></li><li><label><input type="radio" value="Y"> Year</label></li></ul>
<div id="concepturl_set-group"><div><fieldset><table><tbody>`)
	for i := 0; i < rows; i++ {
		b.WriteString(urlRow(i))
	}
	b.WriteString(`<tr class="form-row empty-form" id="concepturl_set-empty"><td><input id="id_concepturl_set-__prefix__-url"></td></tr>
<tr class="add-row"><td colspan="2"><a href="#">Add another Concept url</a></td></tr>
</tbody></table></fieldset></div></div></form></body></html>`)
	return b.String()
}

func newForm(t *testing.T, html string) (*Form, *browsertest.Page, *recordingPrompter) {
	t.Helper()
	page := browsertest.New()
	page.SetHTML("http://admin.test/concept/add/", html)
	page.GrowOnClick(urlTable, urlRow)
	pr := &recordingPrompter{}
	return NewForm(page, pr, zaptest.NewLogger(t), fastTimeouts), page, pr
}

func TestFieldID(t *testing.T) {
	cases := map[string]string{
		"Distinctive name":      "#id_distinctive_name",
		"Primary nature":        "#id_primary_nature",
		"pictures-0-image_file": "#id_pictures-0-image_file",
		" Barcode ":             "#id_barcode",
	}
	for in, want := range cases {
		require.Equal(t, want, FieldID(in), in)
	}
}

func TestSavedName(t *testing.T) {
	got, err := SavedName(`The concept ... was added successfully: "Test Concept".`)
	require.NoError(t, err)
	require.Equal(t, "Test Concept", got)

	got, err = SavedName(`The release "Alex Kidd "EU" [SMS]" was added successfully.`)
	require.NoError(t, err)
	require.Equal(t, `Alex Kidd "EU" [SMS]`, got)

	_, err = SavedName("was added successfully")
	require.Error(t, err)
	_, err = SavedName(`only "one quote`)
	require.Error(t, err)
}

func TestGrowInlines_IdempotentAndMonotonic(t *testing.T) {
	ctx := context.Background()
	f, page, _ := newForm(t, conceptForm(1))
	add := urlTable + " .add-row > td > a"

	added, err := f.GrowInlines(ctx, urlTable, 1)
	require.NoError(t, err)
	require.Equal(t, 0, added)
	require.Equal(t, 0, page.CountClicks(add))

	added, err = f.GrowInlines(ctx, urlTable, 3)
	require.NoError(t, err)
	require.Equal(t, 2, added)
	require.Equal(t, 2, page.CountClicks(add))

	rows, err := f.Rows(ctx, urlTable)
	require.NoError(t, err)
	require.Equal(t, 3, rows)

	added, err = f.GrowInlines(ctx, urlTable, 2)
	require.NoError(t, err)
	require.Equal(t, 0, added)
	require.Equal(t, 2, page.CountClicks(add))
}

func TestGrowInlines_MissingTable(t *testing.T) {
	f, _, _ := newForm(t, `<html><body></body></html>`)
	_, err := f.GrowInlines(context.Background(), urlTable, 2)
	require.ErrorIs(t, err, browser.ErrNoElement)
}

func TestSetInlines_FillsPositionally(t *testing.T) {
	f, page, pr := newForm(t, conceptForm(0))
	urls := []string{"https://en.wikipedia.org/wiki/Alex_Kidd", "https://segaretro.org/Alex_Kidd"}

	require.NoError(t, f.SetInlines(context.Background(), Inline{Table: urlTable, Field: "#id_concepturl_set-{index}-url"}, urls))
	require.Equal(t, urls[0], page.Inputs["#id_concepturl_set-0-url"])
	require.Equal(t, urls[1], page.Inputs["#id_concepturl_set-1-url"])
	require.Empty(t, pr.fields)
}

func TestSetSelect_MissingChoiceBlocksForManualCompletion(t *testing.T) {
	ctx := context.Background()
	f, page, pr := newForm(t, conceptForm(0))

	require.NoError(t, f.SetSelect(ctx, "Primary nature", "Game"))
	require.Equal(t, "Game", page.Selected["#id_primary_nature"])

	require.NoError(t, f.SetSelect(ctx, "Primary nature", "Hardware"))
	require.NoError(t, f.SetSelect(ctx, "Developer", "Sega"))
	require.Equal(t, []string{"Primary nature", "Developer"}, pr.fields)

	manual := f.Manual()
	require.Len(t, manual, 2)
	require.ErrorIs(t, &manual[0], browser.ErrNoChoice)
	require.ErrorIs(t, &manual[1], browser.ErrNoElement)
}

func TestSetSelect_PrompterFailureIsReturned(t *testing.T) {
	f, _, pr := newForm(t, conceptForm(0))
	pr.err = errors.New("operator gone")
	err := f.SetSelect(context.Background(), "Developer", "Sega")
	require.ErrorContains(t, err, "operator gone")
}

func TestSetSelect_WithoutPrompterReturnsSelectError(t *testing.T) {
	page := browsertest.New()
	page.SetHTML("http://admin.test/", conceptForm(0))
	f := NewForm(page, nil, nil, fastTimeouts)

	err := f.SetSelect(context.Background(), "Developer", "Sega")
	var se *SelectError
	require.ErrorAs(t, err, &se)
	require.Equal(t, "Developer", se.Field)
}

func TestSetText_EmptyValueIsNoop(t *testing.T) {
	f, page, pr := newForm(t, conceptForm(0))
	require.NoError(t, f.SetText(context.Background(), "Missing field", ""))
	require.Empty(t, page.Inputs)
	require.Empty(t, pr.fields)
}

func TestSetRadio(t *testing.T) {
	f, page, _ := newForm(t, conceptForm(0))
	require.NoError(t, f.SetRadio(context.Background(), "partial_date_precision", "Year"))
	require.Contains(t, page.Clicks, "#id_partial_date_precision label|Year")
}

func TestSubmit_WaitsForConfirmation(t *testing.T) {
	f, page, _ := newForm(t, conceptForm(0))
	page.OnSubmit = func(p *browsertest.Page, form string) {
		p.SetHTML("http://admin.test/concept/", `<html><body><ul class="messagelist">
<li class="success">The concept "<a href="/admin/concept/7/change/">Test Concept</a>" was added successfully.</li></ul></body></html>`)
	}

	name, err := f.Submit(context.Background(), "concept_form")
	require.NoError(t, err)
	require.Equal(t, "Test Concept", name)
	require.Equal(t, []string{"#concept_form"}, page.Submits)
}

func TestSubmit_NoConfirmationTimesOut(t *testing.T) {
	f, _, _ := newForm(t, conceptForm(0))
	_, err := f.Submit(context.Background(), "concept_form")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
