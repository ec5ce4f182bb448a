package confirm

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/auto-apply/internal/browser/browsertest"
	"github.com/jonathan/auto-apply/internal/platform"
	"github.com/jonathan/auto-apply/internal/selector"
)

var testSpec = platform.Confirmation{
	Chain:         selector.CSS(".application-confirmation", "#thanks"),
	URLSubstrings: []string{"thank", "confirmation"},
	Sentinel:      "acme_submitted",
}

func fastConfirmer() *Confirmer {
	return New(50*time.Millisecond, 5*time.Millisecond, nil)
}

func TestAwait_ElementWithReference(t *testing.T) {
	page := browsertest.NewPage()
	page.CurrentURL = "https://boards.example.com/jobs/1"
	page.Add(".application-confirmation", &browsertest.Element{
		Tag:  "div",
		Text: "Thanks for applying!\n  Your confirmation number is #GH-20931.",
	})

	res := fastConfirmer().Await(context.Background(), page, testSpec)
	assert.Equal(t, "GH-20931", res.ID)
	assert.Equal(t, SignalElement, res.Signal)
	assert.True(t, res.Confirmed)
}

func TestAwait_ElementTextBecomesID(t *testing.T) {
	page := browsertest.NewPage()
	page.Add("#thanks", &browsertest.Element{Tag: "h1", Text: "  Application received  "})

	res := fastConfirmer().Await(context.Background(), page, testSpec)
	assert.Equal(t, "Application received", res.ID)
	assert.Equal(t, SignalElement, res.Signal)
}

func TestAwait_EmptyElementUsesSentinel(t *testing.T) {
	page := browsertest.NewPage()
	page.Add("#thanks", &browsertest.Element{Tag: "div"})

	res := fastConfirmer().Await(context.Background(), page, testSpec)
	assert.Equal(t, "acme_submitted", res.ID)
}

func TestAwait_HiddenElementIgnored(t *testing.T) {
	page := browsertest.NewPage()
	page.Add("#thanks", &browsertest.Element{Tag: "div", Hidden: true, Text: "Thanks"})

	res := fastConfirmer().Await(context.Background(), page, testSpec)
	assert.Equal(t, UnconfirmedSentinel, res.ID)
	assert.Equal(t, SignalTimeout, res.Signal)
}

func TestAwait_URLSignal(t *testing.T) {
	page := browsertest.NewPage()
	page.CurrentURL = "https://boards.example.com/acme/jobs/1/Thank-You"

	res := fastConfirmer().Await(context.Background(), page, testSpec)
	assert.Equal(t, "acme_submitted", res.ID)
	assert.Equal(t, SignalURL, res.Signal)
	assert.True(t, res.Confirmed)
}

func TestAwait_URLSignalWithRegionInHTML(t *testing.T) {
	page := browsertest.NewPage()
	page.CurrentURL = "https://boards.example.com/confirmation"
	page.Body = `<section class="application-confirmation">Reference: 88412</section>`

	res := fastConfirmer().Await(context.Background(), page, testSpec)
	assert.Equal(t, "88412", res.ID)
	assert.Equal(t, SignalURL, res.Signal)
}

func TestAwait_SignalAppearsLater(t *testing.T) {
	page := browsertest.NewPage()
	page.CurrentURL = "https://boards.example.com/jobs/1"

	go func() {
		time.Sleep(15 * time.Millisecond)
		page.Add("#thanks", &browsertest.Element{Tag: "div", Text: "Application ID: 777123"})
	}()

	res := New(time.Second, 5*time.Millisecond, nil).Await(context.Background(), page, testSpec)
	assert.Equal(t, "777123", res.ID)
}

func TestAwait_TimeoutYieldsSentinel(t *testing.T) {
	page := browsertest.NewPage()
	page.CurrentURL = "https://boards.example.com/jobs/1"

	start := time.Now()
	res := fastConfirmer().Await(context.Background(), page, testSpec)
	assert.Equal(t, UnconfirmedSentinel, res.ID)
	assert.Equal(t, SignalTimeout, res.Signal)
	assert.False(t, res.Confirmed)
	assert.Less(t, time.Since(start), time.Second)
}

func TestAwait_ClosedPageYieldsSentinel(t *testing.T) {
	page := browsertest.NewPage()
	require.NoError(t, page.Close())

	res := fastConfirmer().Await(context.Background(), page, testSpec)
	assert.Equal(t, UnconfirmedSentinel, res.ID)
}

func TestExtractID(t *testing.T) {
	tests := []struct {
		text, want string
	}{
		{"", ""},
		{"   ", ""},
		{"Confirmation #AB-1234", "AB-1234"},
		{"Your application ID: 99812 has been received", "99812"},
		{"Reference no. X7Y8Z9", "X7Y8Z9"},
		{"Application submitted", "Application submitted"},
		{"Thank you\n\nfor applying", "Thank you for applying"},
		{strings.Repeat("a", 200), strings.Repeat("a", maxIDLength)},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractID(tt.text))
		})
	}
}

func TestMatchesURL(t *testing.T) {
	assert.True(t, MatchesURL("https://x.com/THANKS", []string{"thank"}))
	assert.False(t, MatchesURL("https://x.com/jobs", []string{"thank", ""}))
	assert.False(t, MatchesURL("https://x.com/jobs", nil))
}

func TestRegionText(t *testing.T) {
	html := `<html><body><div id="thanks"> Thanks
	for applying </div></body></html>`
	assert.Equal(t, "Thanks for applying", RegionText(html, selector.CSS(".missing", "#thanks")))
	assert.Equal(t, "", RegionText(html, selector.XPath("//div")))
}
