package urls

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	assert.True(t, Validate("https://www.mercadolivre.com.br/tenis-mlb"))
	assert.True(t, Validate("https://produto.mercadolivre.com.br/MLB-123456789"))
	assert.True(t, Validate("https://click1.mercadolivre.com.br/mclick/abc"))
	assert.True(t, Validate("https://articulo.mercadolibre.com/MLA-1"))
	assert.False(t, Validate("https://www.amazon.com.br/dp/B000"))
	assert.False(t, Validate("https://mercadolivre.com.br.evil.com/MLB-1"))
	assert.False(t, Validate("not a url"))
	assert.False(t, Validate(""))
}

func TestExtractProductID(t *testing.T) {
	cases := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"https://produto.mercadolivre.com.br/MLB-123456789", "MLB123456789", true},
		{"https://produto.mercadolivre.com.br/MLB123456789-tenis", "MLB123456789", true},
		{"https://www.mercadolivre.com.br/p/MLB987654321", "MLB987654321", true},
		{"https://www.mercadolivre.com.br/tenis/p?item_id=MLB123456789", "MLB123456789", true},
		{"https://www.mercadolivre.com.br/social/share?wid=MLB111222333", "MLB111222333", true},
		{"https://www.mercadolivre.com.br/item/123456789012", "MLB123456789012", true},
		{"https://www.mercadolivre.com.br/ofertas", "", false},
		{"https://www.mercadolivre.com.br/tenis-nike", "", false},
	}
	for _, tc := range cases {
		got, ok := ExtractProductID(tc.raw)
		assert.Equal(t, tc.ok, ok, tc.raw)
		assert.Equal(t, tc.want, got, tc.raw)
	}
}

func TestExtractProductIDPrefersPrefixedForm(t *testing.T) {
	// A numeric run earlier in the path must not shadow the MLB id.
	got, ok := ExtractProductID("https://www.mercadolivre.com.br/c/20240101999/MLB-123456789")
	require.True(t, ok)
	assert.Equal(t, "MLB123456789", got)
}

func TestNormalize(t *testing.T) {
	got, ok := Normalize("https://www.mercadolivre.com.br/tenis/p?item_id=MLB123456789")
	require.True(t, ok)
	assert.Equal(t, "https://produto.mercadolivre.com.br/MLB-123456789", got)

	// Idempotent on already canonical input.
	again, ok := Normalize(got)
	require.True(t, ok)
	assert.Equal(t, got, again)

	_, ok = Normalize("https://www.mercadolivre.com.br/ofertas")
	assert.False(t, ok)

	_, ok = Normalize("https://example.com/MLB-123456789")
	assert.False(t, ok)
}

func TestIsAcceptableProductURL(t *testing.T) {
	assert.True(t, IsAcceptableProductURL("https://produto.mercadolivre.com.br/MLB-123456789"))
	// Tracking links without a visible id are accepted for later resolution.
	assert.True(t, IsAcceptableProductURL("https://click1.mercadolivre.com.br/mclick/opaque-token"))
	assert.False(t, IsAcceptableProductURL("https://www.mercadolivre.com.br/ofertas"))
	assert.False(t, IsAcceptableProductURL("https://example.com/MLB-123456789"))
}

func TestResolveRedirects(t *testing.T) {
	var final *httptest.Server
	final = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer final.Close()

	hop := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, final.URL+"/MLB-123456789", http.StatusFound)
	}))
	defer hop.Close()

	got := ResolveRedirects(context.Background(), nil, hop.URL, 5)
	assert.Equal(t, final.URL+"/MLB-123456789", got)
}

func TestResolveRedirectsStopsAtMaxHops(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/again", http.StatusFound)
	}))
	defer srv.Close()

	got := ResolveRedirects(context.Background(), nil, srv.URL, 3)
	assert.Contains(t, got, srv.URL)
}

func TestResolveRedirectsUnreachableHost(t *testing.T) {
	raw := "http://127.0.0.1:1/nope"
	got := ResolveRedirects(context.Background(), nil, raw, 5)
	assert.Equal(t, raw, got)
}
