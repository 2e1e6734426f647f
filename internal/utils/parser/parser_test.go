package parser

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type searchParams struct {
	Q            string `form:"q"`
	Limit        int    `form:"limit"`
	IncludeStock bool   `form:"include_stock"`
	Fresh        *bool  `form:"fresh"`
	Ignored      string `form:"-"`
}

func runParse(t *testing.T, target string, out interface{}) error {
	t.Helper()
	var parseErr error
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		parseErr = ParseQuery(c, out)
		return nil
	})
	_, err := app.Test(httptest.NewRequest("GET", target, nil), -1)
	require.NoError(t, err)
	return parseErr
}

func TestParseQueryBindsTaggedFields(t *testing.T) {
	var got searchParams
	err := runParse(t, "/?q=tenis+nike&limit=5&include_stock=true&fresh=true", &got)
	require.NoError(t, err)
	assert.Equal(t, "tenis nike", got.Q)
	assert.Equal(t, 5, got.Limit)
	assert.True(t, got.IncludeStock)
	require.NotNil(t, got.Fresh)
	assert.True(t, *got.Fresh)
	assert.Empty(t, got.Ignored)
}

func TestParseQueryLeavesMissingFieldsZero(t *testing.T) {
	var got searchParams
	err := runParse(t, "/?q=notebook", &got)
	require.NoError(t, err)
	assert.Equal(t, "notebook", got.Q)
	assert.Zero(t, got.Limit)
	assert.Nil(t, got.Fresh)
}

func TestParseQueryRejectsBadInt(t *testing.T) {
	var got searchParams
	err := runParse(t, "/?limit=muitos", &got)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limit")
}

func TestParseQueryRequiresStructPointer(t *testing.T) {
	var s string
	err := runParse(t, "/?q=x", &s)
	assert.Error(t, err)
}
