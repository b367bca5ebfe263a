package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	got []Request
}

func (f *fakeClient) Generate(_ context.Context, req Request) (string, error) {
	f.got = append(f.got, req)
	return `{"message":"ok"}`, nil
}

var tiers = []string{"gemini-2.5-pro", "gemini-2.5-flash", "gemini-2.5-flash-lite"}

func newRegistry(keys map[string]string) (*Registry, *fakeClient, *fakeClient) {
	g, o := &fakeClient{}, &fakeClient{}
	return NewRegistry(RegistryConfig{
		PlatformKeys: keys,
		Clients:      map[string]Client{ProviderGemini: g, ProviderOpenAI: o},
		Tiers:        tiers,
	}), g, o
}

func TestProviderFor(t *testing.T) {
	assert.Equal(t, ProviderGemini, ProviderFor("gemini-2.5-pro"))
	assert.Equal(t, ProviderOpenAI, ProviderFor("gpt-4o"))
	assert.Equal(t, ProviderOpenAI, ProviderFor("o3-mini"))
	assert.Equal(t, "", ProviderFor("claude-3"))
	assert.Equal(t, "", ProviderFor("opus"))
}

func TestChain(t *testing.T) {
	r, _, _ := newRegistry(nil)

	assert.Equal(t, tiers, r.Chain("gemini-2.5-pro", 2))
	assert.Equal(t, []string{"gemini-2.5-pro", "gemini-2.5-flash"}, r.Chain("gemini-2.5-pro", 1))
	assert.Equal(t, []string{"gemini-2.5-flash", "gemini-2.5-flash-lite"}, r.Chain("gemini-2.5-flash", 2))
	assert.Equal(t, []string{"gemini-2.5-flash-lite"}, r.Chain("gemini-2.5-flash-lite", 2))
	assert.Equal(t, []string{"gpt-4o"}, r.Chain("gpt-4o", 2))
	assert.Equal(t, []string{"gemini-2.5-pro"}, r.Chain("gemini-2.5-pro", 0))
}

func TestResolve(t *testing.T) {
	r, _, _ := newRegistry(map[string]string{ProviderGemini: "platform"})

	tg, err := r.Resolve("gemini-2.5-pro", nil)
	require.NoError(t, err)
	assert.Equal(t, "platform", tg.APIKey)
	assert.False(t, tg.Personal)

	tg, err = r.Resolve("gemini-2.5-pro", map[string]string{ProviderGemini: "mine"})
	require.NoError(t, err)
	assert.Equal(t, "mine", tg.APIKey)
	assert.True(t, tg.Personal)

	_, err = r.Resolve("gpt-4o", nil)
	assert.ErrorIs(t, err, ErrNoAPIKey)

	_, err = r.Resolve("claude-3", nil)
	assert.ErrorIs(t, err, ErrUnknownModel)
}

func TestHasPersonalKey(t *testing.T) {
	keys := map[string]string{ProviderOpenAI: "sk"}
	assert.True(t, HasPersonalKey("gpt-4o", keys))
	assert.False(t, HasPersonalKey("gemini-2.5-pro", keys))
	assert.False(t, HasPersonalKey("gpt-4o", map[string]string{ProviderOpenAI: "  "}))
}

func TestGenerate_RoutesToProvider(t *testing.T) {
	r, g, o := newRegistry(map[string]string{ProviderGemini: "pk", ProviderOpenAI: "ok"})
	ctx := context.Background()

	tg, err := r.Resolve("gpt-4o", nil)
	require.NoError(t, err)
	_, err = r.Generate(ctx, tg, Request{Prompt: "hi", JSON: true})
	require.NoError(t, err)

	require.Len(t, o.got, 1)
	assert.Empty(t, g.got)
	assert.Equal(t, "gpt-4o", o.got[0].Model)
	assert.Equal(t, "ok", o.got[0].APIKey)
}

func TestGenerate_LimiterHonoursCancel(t *testing.T) {
	g := &fakeClient{}
	r := NewRegistry(RegistryConfig{
		PlatformKeys: map[string]string{ProviderGemini: "pk"},
		Clients:      map[string]Client{ProviderGemini: g},
		RateLimit:    0.001,
		RateBurst:    1,
	})
	tg, err := r.Resolve("gemini-2.5-pro", nil)
	require.NoError(t, err)

	_, err = r.Generate(context.Background(), tg, Request{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Generate(ctx, tg, Request{})
	assert.Error(t, err)
	assert.Len(t, g.got, 1)
}

func TestIsReasoningModel(t *testing.T) {
	assert.True(t, isReasoningModel("o1"))
	assert.True(t, isReasoningModel("o3-mini"))
	assert.False(t, isReasoningModel("gpt-4o"))
}
