package postgres

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halalway/halalway/internal/core/domain"
	"github.com/halalway/halalway/internal/core/ports"
)

func TestCompilePatch_EngagementUpsert(t *testing.T) {
	p, err := compilePatch(domain.Document{
		"id":          "ignored",
		"serviceId":   ports.SetOnInsert("s1"),
		"createdAt":   ports.SetOnInsert(ports.ServerTimestamp()),
		"impressions": ports.Increment(1),
		"updatedAt":   ports.ServerTimestamp(),
	}, 3)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(p.insert, "'{}'::jsonb || "))
	assert.True(t, strings.HasPrefix(p.update, "documents.data || "))
	assert.Contains(t, p.update, "COALESCE(")
	assert.NotContains(t, p.update, "serviceId")
	assert.Equal(t, 1, strings.Count(p.update, "to_jsonb(now())"), "only updatedAt is refreshed on update")
	assert.Equal(t, 2, strings.Count(p.insert, "to_jsonb(now())"))

	var insertOnly string
	for _, a := range p.args {
		if s, ok := a.(string); ok && strings.Contains(s, "serviceId") {
			insertOnly = s
		}
	}
	assert.JSONEq(t, `{"serviceId":"s1"}`, insertOnly)
	for _, a := range p.args {
		assert.NotEqual(t, "ignored", a)
	}
}

func TestCompilePatch_PlainFields(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p, err := compilePatch(domain.Document{"status": "approved", "endDate": ts}, 1)
	require.NoError(t, err)

	require.Len(t, p.args, 1)
	assert.JSONEq(t, `{"status":"approved","endDate":"2024-05-01T12:00:00Z"}`, p.args[0].(string))
	assert.Equal(t, "'{}'::jsonb || $1::jsonb", p.insert)
	assert.Equal(t, "documents.data || $1::jsonb", p.update)
}

func TestWhereClause(t *testing.T) {
	cond, args, err := whereClause("category", ports.OpEqual, "restaurant", 2)
	require.NoError(t, err)
	assert.Equal(t, "data ? $2::text AND data->$2::text = $3::jsonb", cond)
	assert.Equal(t, []any{"category", `"restaurant"`}, args)

	cond, args, err = whereClause("rating", ports.OpGreaterEqual, 4, 2)
	require.NoError(t, err)
	assert.Equal(t, "(CASE WHEN jsonb_typeof(data->$2::text) = 'number' THEN (data->>$2::text)::numeric END) >= $3::numeric", cond,
		"non-numeric values compare as NULL instead of failing the cast")
	assert.Equal(t, []any{"rating", 4.0}, args)

	cond, args, err = whereClause("name", ports.OpLess, "M", 2)
	require.NoError(t, err)
	assert.Equal(t, "(CASE WHEN jsonb_typeof(data->$2::text) = 'string' THEN data->>$2::text END) < $3::text", cond)
	assert.Equal(t, []any{"name", "M"}, args)

	_, _, err = whereClause("rating", ports.OpGreater, []string{"x"}, 2)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	cond, _, err = whereClause("tags", ports.OpArrayContains, "wifi", 2)
	require.NoError(t, err)
	assert.Contains(t, cond, "@>")

	cond, args, err = whereClause(domain.FieldID, ports.OpEqual, "abc", 2)
	require.NoError(t, err)
	assert.Equal(t, "id = $2", cond)
	assert.Equal(t, []any{"abc"}, args)

	_, _, err = whereClause("x", ports.Op("~"), 1, 2)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
