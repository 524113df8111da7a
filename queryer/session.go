package queryer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/icsd-tools/icsdcrawl/models"
	"github.com/icsd-tools/icsdcrawl/tags"
)

// Page element anchors for the search flow. JSF ids contain colons, so all
// id lookups go through attribute selectors.
const (
	searchPanelHeaderID = "content_form:mainSearchPanel_header"
	runQueryButtonName  = "content_form:btnRunQuery"
	listViewTitleID     = "display_main"
	selectAllButtonID   = "display_form:listViewTable:uiSelectAllRows"
	detailedViewButton  = "#LVDetailed"
	expandAllSelector   = "a#ExpandAll.no_print"
	nextEntrySelector   = ".button_vcr_next"
	nextPageSelector    = ".ui-icon-seek-next"
	cifFilenameFieldID  = "fileNameForExportToCif"
	cifExportButtonID   = "aExportCifFile"
)

func byID(id string) string {
	return fmt.Sprintf("[id=%q]", id)
}

// bound returns the page bound to a nav-timeout context derived from ctx.
func (q *Queryer) bound(ctx context.Context) (*rod.Page, context.CancelFunc) {
	opCtx, cancel := context.WithTimeout(ctx, q.cfg.NavTimeout)
	return q.page.Context(opCtx), cancel
}

// Open navigates to the search form and verifies the Basic Search &
// Retrieve panel actually loaded.
func (q *Queryer) Open(ctx context.Context) error {
	p, cancel := q.bound(ctx)
	defer cancel()

	if err := p.Navigate(q.cfg.URL); err != nil {
		q.Close()
		return models.CategorizeError(err, "navigation to the search form failed")
	}
	if err := p.WaitDOMStable(domStableWait, 0.1); err != nil {
		slog.Debug("DOM did not settle, proceeding", "error", err)
	}

	header, err := p.Element(byID(searchPanelHeaderID))
	if err != nil {
		return q.fail(models.ErrCodePageMismatch,
			"failed to load Basic Search & Retrieve", err)
	}
	text, err := header.Text()
	if err != nil || !strings.Contains(text, "Basic Search") {
		return q.fail(models.ErrCodePageMismatch,
			"failed to load Basic Search & Retrieve", err)
	}
	slog.Info("search form loaded", "url", q.cfg.URL)
	return nil
}

// SelectStructureSource clicks the Content Selection radio button for the
// requested source. Experimental is the form default, so it needs no click.
func (q *Queryer) SelectStructureSource(ctx context.Context, source models.StructureSource) error {
	if source == models.SourceExperimental {
		return nil
	}
	labels := map[models.StructureSource]string{
		models.SourceTheoretical: "Theoretical Structures only",
		models.SourceAll:         "All Structures",
	}
	label, ok := labels[source]
	if !ok {
		return models.NewCrawlError(models.ErrCodeInvalidQuery,
			fmt.Sprintf("unknown structure source %c", source), nil)
	}

	p, cancel := q.bound(ctx)
	defer cancel()

	radio, err := p.ElementR("label", label)
	if err != nil {
		return q.fail(models.ErrCodePageMismatch,
			"content selection radio button not found: "+label, err)
	}
	if err := radio.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return q.fail(models.ErrCodeNavigation,
			"failed to select structure source", err)
	}
	slog.Info("structure source selected", "source", label)
	return nil
}

// ShowDBInfo expands the DB Info panel of the search form. The collection
// code field lives inside it, so range queries need the panel open before
// the field can be filled.
func (q *Queryer) ShowDBInfo(ctx context.Context) error {
	p, cancel := q.bound(ctx)
	defer cancel()

	link, err := p.ElementR("a", "DB Info")
	if err != nil {
		return q.fail(models.ErrCodePageMismatch, "DB Info panel link not found", err)
	}
	if err := link.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return q.fail(models.ErrCodeNavigation, "failed to expand the DB Info panel", err)
	}
	if err := p.WaitDOMStable(domStableWait, 0.1); err != nil {
		slog.Debug("DOM did not settle, proceeding", "error", err)
	}
	return nil
}

// SubmitQuery fills the search form from the query and runs it, then
// verifies the List View loaded and records the hit count.
func (q *Queryer) SubmitQuery(ctx context.Context, query models.Query) error {
	if err := query.Validate(); err != nil {
		q.Close()
		return err
	}

	p, cancel := q.bound(ctx)
	defer cancel()

	for _, name := range query.Fields() {
		field, err := p.Element(byID(tags.QueryTags[name]))
		if err != nil {
			return q.fail(models.ErrCodePageMismatch,
				fmt.Sprintf("query field %q not found on the form", name), err)
		}
		if err := field.Input(query[name]); err != nil {
			return q.fail(models.ErrCodeNavigation,
				fmt.Sprintf("failed to fill query field %q", name), err)
		}
		slog.Info("query field set", "field", name, "value", query[name])
	}

	if err := q.runQuery(p); err != nil {
		return err
	}
	return q.checkListView(ctx)
}

// runQuery clicks the Run Query button.
func (q *Queryer) runQuery(p *rod.Page) error {
	button, err := p.Element(fmt.Sprintf("[name=%q]", runQueryButtonName))
	if err != nil {
		return q.fail(models.ErrCodePageMismatch, "Run Query button not found", err)
	}
	if err := button.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return q.fail(models.ErrCodeNavigation, "failed to run the query", err)
	}
	return nil
}

// checkListView verifies the results list loaded and parses the hit count
// out of its title.
func (q *Queryer) checkListView(ctx context.Context) error {
	p, cancel := q.bound(ctx)
	defer cancel()

	if err := p.WaitDOMStable(domStableWait, 0.1); err != nil {
		slog.Debug("DOM did not settle, proceeding", "error", err)
	}

	title, err := p.Element(byID(listViewTitleID))
	if err != nil {
		return q.fail(models.ErrCodePageMismatch,
			"no hits or too many hits; modify your query", err)
	}
	text, err := title.Text()
	if err != nil {
		return q.fail(models.ErrCodePageMismatch,
			`failed to load "List View" of results`, err)
	}

	hits, err := hitsFromListView(text)
	if err != nil {
		return q.fail(models.ErrCodePageMismatch,
			`failed to load "List View" of results`, err)
	}
	q.hits = hits
	slog.Info("query yielded hits", "hits", hits)
	return nil
}

// SelectAll ticks the Select All checkbox of the results list. The control
// sits under an overlay, so the click is dispatched from JS rather than
// through a synthesized mouse event.
func (q *Queryer) SelectAll(ctx context.Context) error {
	p, cancel := q.bound(ctx)
	defer cancel()

	box, err := p.Element(byID(selectAllButtonID))
	if err != nil {
		return q.fail(models.ErrCodePageMismatch, "Select All control not found", err)
	}
	if _, err := box.Eval(`() => this.click()`); err != nil {
		return q.fail(models.ErrCodeNavigation, "failed to select all results", err)
	}
	return nil
}

// ShowDetailedView switches the result set to the Detailed View and expands
// every panel so all fields are present in one snapshot.
func (q *Queryer) ShowDetailedView(ctx context.Context) error {
	p, cancel := q.bound(ctx)
	defer cancel()

	button, err := p.Element(detailedViewButton)
	if err != nil {
		return q.fail(models.ErrCodePageMismatch, "Show Detailed View button not found", err)
	}
	if err := button.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return q.fail(models.ErrCodeNavigation, "failed to open the Detailed View", err)
	}
	if err := p.WaitDOMStable(domStableWait, 0.1); err != nil {
		slog.Debug("DOM did not settle, proceeding", "error", err)
	}

	ok, err := q.detailedViewLoaded(p)
	if err != nil || !ok {
		return q.fail(models.ErrCodePageMismatch,
			`failed to load "Detailed View" of results`, err)
	}
	return q.expandAll(p)
}

// detailedViewLoaded reports whether any title element names the Detailed View.
func (q *Queryer) detailedViewLoaded(p *rod.Page) (bool, error) {
	titles, err := p.Elements(".title")
	if err != nil {
		return false, err
	}
	for _, t := range titles {
		text, err := t.Text()
		if err != nil {
			continue
		}
		if strings.Contains(text, "Detailed View") {
			return true, nil
		}
	}
	return false, nil
}

// expandAll opens every collapsed panel of the Detailed View.
func (q *Queryer) expandAll(p *rod.Page) error {
	link, err := p.Element(expandAllSelector)
	if err != nil {
		return q.fail(models.ErrCodePageMismatch, "Expand All link not found", err)
	}
	if err := link.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return q.fail(models.ErrCodeNavigation, "failed to expand panels", err)
	}
	return nil
}

// EntriesLoaded reads the number of entries the Detailed View reports.
// It must match the List View hit count; the caller enforces that.
func (q *Queryer) EntriesLoaded(ctx context.Context) (int, error) {
	p, cancel := q.bound(ctx)
	defer cancel()

	titles, err := p.Elements(".title")
	if err != nil {
		return 0, models.CategorizeError(err, "Detailed View title elements not found")
	}
	for _, t := range titles {
		text, err := t.Text()
		if err != nil {
			continue
		}
		if n, perr := entriesFromDetailedView(text); perr == nil {
			return n, nil
		}
	}
	return 0, models.NewCrawlError(models.ErrCodePageMismatch,
		"Detailed View does not report an entry count", nil)
}

// Snapshot returns the rendered HTML of the current entry page.
func (q *Queryer) Snapshot(ctx context.Context) (string, error) {
	p, cancel := q.bound(ctx)
	defer cancel()

	rawHTML, err := p.HTML()
	if err != nil {
		return "", models.CategorizeError(err, "failed to capture page HTML")
	}
	return rawHTML, nil
}

// NextEntry advances the Detailed View pager to the next entry.
func (q *Queryer) NextEntry(ctx context.Context) error {
	p, cancel := q.bound(ctx)
	defer cancel()

	button, err := p.Element(nextEntrySelector)
	if err != nil {
		return q.fail(models.ErrCodePageMismatch, "Next button not found", err)
	}
	if err := button.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return q.fail(models.ErrCodeNavigation, "failed to advance to the next entry", err)
	}
	if err := p.WaitDOMStable(domStableWait, 0.1); err != nil {
		slog.Debug("DOM did not settle after pager click", "error", err)
	}
	return nil
}

// NextPage advances the List View pager (10 rows per page). Used by the
// collection-code enumerator, not the entry walk.
func (q *Queryer) NextPage(ctx context.Context) error {
	p, cancel := q.bound(ctx)
	defer cancel()

	button, err := p.Element(nextPageSelector)
	if err != nil {
		return q.fail(models.ErrCodePageMismatch, "next page control not found", err)
	}
	if _, err := button.Eval(`() => this.click()`); err != nil {
		return q.fail(models.ErrCodeNavigation, "failed to advance the result page", err)
	}
	if err := p.WaitDOMStable(domStableWait, 0.1); err != nil {
		slog.Debug("DOM did not settle after page click", "error", err)
	}
	return nil
}

// ExportCIF fills the export filename field and triggers the CIF download.
func (q *Queryer) ExportCIF(ctx context.Context) error {
	p, cancel := q.bound(ctx)
	defer cancel()

	field, err := p.Element(byID(cifFilenameFieldID))
	if err != nil {
		return q.fail(models.ErrCodePageMismatch, "CIF filename field not found", err)
	}
	// Select-all first so Input replaces whatever base name the form remembers.
	if err := field.SelectAllText(); err != nil {
		return q.fail(models.ErrCodeNavigation, "failed to clear the CIF filename field", err)
	}
	if err := field.Input(cifBaseFilename); err != nil {
		return q.fail(models.ErrCodeNavigation, "failed to set the CIF base filename", err)
	}

	button, err := p.Element(byID(cifExportButtonID))
	if err != nil {
		return q.fail(models.ErrCodePageMismatch, "Export to CIF button not found", err)
	}
	if err := button.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return q.fail(models.ErrCodeNavigation, "failed to trigger the CIF export", err)
	}
	return nil
}

// Screenshot captures the current page.
func (q *Queryer) Screenshot(ctx context.Context) ([]byte, error) {
	p, cancel := q.bound(ctx)
	defer cancel()

	png, err := p.Screenshot(false, nil)
	if err != nil {
		return nil, models.CategorizeError(err, "failed to capture screenshot")
	}
	return png, nil
}
