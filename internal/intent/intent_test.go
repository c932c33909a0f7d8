package intent

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toneill57/innpilot-sub001/internal/llm"
	"github.com/toneill57/innpilot-sub001/internal/model"
)

func strp(s string) *string { return &s }
func intp(n int) *int { return &n }

func fixedClock() time.Time {
	return time.Date(2025, 5, 20, 9, 30, 0, 0, time.UTC)
}

func TestMerge_FillForward(t *testing.T) {
	values := []model.Intent{
		{},
		{StartDate: strp("2025-06-10")},
		{EndDate: strp("2025-06-15"), PartySize: intp(2)},
		{StartDate: strp("2025-07-01"), EndDate: strp("2025-07-04"), PartySize: intp(4), Category: strp("suite")},
		{Category: strp("cabin")},
	}

	for _, acc := range values {
		for _, partial := range values {
			merged, _ := Merge(acc, partial)
			assert.Equal(t, pick(partial.StartDate, acc.StartDate), merged.StartDate)
			assert.Equal(t, pick(partial.EndDate, acc.EndDate), merged.EndDate)
			assert.Equal(t, pick(partial.Category, acc.Category), merged.Category)
			if partial.PartySize != nil {
				assert.Equal(t, *partial.PartySize, *merged.PartySize)
			} else {
				assert.Equal(t, acc.PartySize, merged.PartySize)
			}
		}
	}
}

func pick(partial, acc *string) *string {
	if partial != nil {
		return partial
	}
	return acc
}

func TestMerge_Captured(t *testing.T) {
	acc := model.Intent{StartDate: strp("2025-06-10"), PartySize: intp(4), Category: strp("Suite")}

	tests := []struct {
		name    string
		partial model.Intent
		want    bool
	}{
		{name: "empty partial", partial: model.Intent{}, want: false},
		{name: "same values", partial: model.Intent{StartDate: strp("2025-06-10"), PartySize: intp(4)}, want: false},
		{name: "case only change", partial: model.Intent{Category: strp("suite")}, want: false},
		{name: "new slot", partial: model.Intent{EndDate: strp("2025-06-15")}, want: true},
		{name: "changed party", partial: model.Intent{PartySize: intp(5)}, want: true},
		{name: "changed date", partial: model.Intent{StartDate: strp("2025-06-11")}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, captured := Merge(acc, tt.partial)
			assert.Equal(t, tt.want, captured)
		})
	}
}

func TestMerge_CompleteIsMonotonic(t *testing.T) {
	acc := model.Intent{}
	acc, _ = Merge(acc, model.Intent{StartDate: strp("2025-06-10"), EndDate: strp("2025-06-15")})
	assert.False(t, acc.Complete)

	acc, _ = Merge(acc, model.Intent{PartySize: intp(4)})
	require.True(t, acc.Complete)

	for i := 0; i < 3; i++ {
		acc, _ = Merge(acc, model.Intent{})
		assert.True(t, acc.Complete)
	}

	// Complete carried on the accumulated record survives even a record
	// that no longer fills every mandatory slot.
	stale := model.Intent{Complete: true}
	merged, _ := Merge(stale, model.Intent{})
	assert.True(t, merged.Complete)
}

func TestMerge_DoesNotAliasInputs(t *testing.T) {
	partial := model.Intent{StartDate: strp("2025-06-10")}
	merged, _ := Merge(model.Intent{}, partial)
	*partial.StartDate = "2030-01-01"
	assert.Equal(t, "2025-06-10", *merged.StartDate)
}

func TestKeyword_Extract(t *testing.T) {
	k := NewKeyword(fixedClock)
	ctx := context.Background()

	tests := []struct {
		text  string
		start string
		end   string
		party int
		cat   string
	}{
		{text: "Do you have rooms for 4 guests from June 10 to June 15?", start: "2025-06-10", end: "2025-06-15", party: 4, cat: "room"},
		{text: "A suite for two people, june 10-15 please", start: "2025-06-10", end: "2025-06-15", party: 2, cat: "suite"},
		{text: "Arriving 2025-08-01 leaving 2025-08-03", start: "2025-08-01", end: "2025-08-03"},
		{text: "2 adults and 1 child, 10/06 to 12/06", start: "2025-06-10", end: "2025-06-12", party: 3},
		{text: "We arrive on the 3rd of March", start: "2026-03-03"},
		{text: "From December 28 to January 3 in a cabin", start: "2025-12-28", end: "2026-01-03", cat: "cabin"},
		{text: "party of six", party: 6},
		{text: "May 3 guests share one room?", party: 3, cat: "room"},
		{text: "may we check in on may 3?", start: "2026-05-03"},
		{text: "Is the pool open May 3rd?", start: "2026-05-03"},
		{text: "Booking for June 2 nights"},
		{text: "What about WiFi?"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := k.Extract(ctx, tt.text)
			assertSlot(t, tt.start, got.StartDate)
			assertSlot(t, tt.end, got.EndDate)
			assertSlot(t, tt.cat, got.Category)
			if tt.party == 0 {
				assert.Nil(t, got.PartySize)
			} else if assert.NotNil(t, got.PartySize) {
				assert.Equal(t, tt.party, *got.PartySize)
			}
		})
	}
}

func assertSlot(t *testing.T, want string, got *string) {
	t.Helper()
	if want == "" {
		assert.Nil(t, got)
		return
	}
	if assert.NotNil(t, got) {
		assert.Equal(t, want, *got)
	}
}

func TestKeyword_HasCues(t *testing.T) {
	k := NewKeyword(fixedClock)
	assert.False(t, k.HasCues("What about WiFi?"))
	assert.False(t, k.HasCues("What time is checkout?"))
	assert.True(t, k.HasCues("We want to stay next weekend"))
	assert.True(t, k.HasCues("Is there something for three of us"))
	assert.True(t, k.HasCues("Any availability in July?"))
}

type fakeClient struct {
	calls   atomic.Int32
	content string
	err     error
}

func (f *fakeClient) Complete(_ context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{Content: f.content}, nil
}

func (f *fakeClient) Name() string { return "fake" }

func TestLLM_Extract(t *testing.T) {
	ctx := context.Background()

	client := &fakeClient{content: "```json\n{\"start_date\":\"2025-06-10\",\"end_date\":\"2025-06-15\",\"party_size\":4,\"category\":null}\n```"}
	got := NewLLM(client, "m", fixedClock, nil).Extract(ctx, "rooms for 4 from june 10 to 15")
	assertSlot(t, "2025-06-10", got.StartDate)
	assertSlot(t, "2025-06-15", got.EndDate)
	require.NotNil(t, got.PartySize)
	assert.Equal(t, 4, *got.PartySize)
	assert.Nil(t, got.Category)
}

func TestLLM_FailuresYieldEmptyIntent(t *testing.T) {
	ctx := context.Background()

	for name, client := range map[string]*fakeClient{
		"provider error": {err: errors.New("boom")},
		"not json":       {content: "I could not find any dates."},
		"broken json":    {content: `{"start_date": "2025-06-10",`},
	} {
		t.Run(name, func(t *testing.T) {
			got := NewLLM(client, "m", fixedClock, nil).Extract(ctx, "anything")
			assert.True(t, got.Empty())
		})
	}
}

func TestParse_DropsMalformedSlots(t *testing.T) {
	got, err := Parse(`{"start_date":"June 10","end_date":"2025-06-15","party_size":500,"category":"Suite"}`)
	require.NoError(t, err)
	assert.Nil(t, got.StartDate)
	assertSlot(t, "2025-06-15", got.EndDate)
	assert.Nil(t, got.PartySize)
	assertSlot(t, "suite", got.Category)

	got, err = Parse(`{"start_date":"2025-06-15","end_date":"2025-06-10"}`)
	require.NoError(t, err)
	assertSlot(t, "2025-06-15", got.StartDate)
	assert.Nil(t, got.EndDate, "end before start is dropped")
}

func TestFastPath(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{content: `{"start_date":"2025-07-04","end_date":null,"party_size":null,"category":null}`}
	fp := NewFastPath(NewKeyword(fixedClock), NewLLM(client, "m", fixedClock, nil))

	got := fp.Extract(ctx, "Rooms for 4 guests from June 10 to June 15")
	assertSlot(t, "2025-06-10", got.StartDate)
	assert.EqualValues(t, 0, client.calls.Load(), "keyword hit must not call the provider")

	got = fp.Extract(ctx, "What about WiFi?")
	assert.True(t, got.Empty())
	assert.EqualValues(t, 0, client.calls.Load(), "cue-free text must not call the provider")

	got = fp.Extract(ctx, "We'd like to stay over Independence Day weekend")
	assertSlot(t, "2025-07-04", got.StartDate)
	assert.EqualValues(t, 1, client.calls.Load())
}

func TestFastPath_PartialHitAsksFallback(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{content: `{"start_date":"2025-05-23","end_date":"2025-05-26","party_size":2,"category":null}`}
	fp := NewFastPath(NewKeyword(fixedClock), NewLLM(client, "m", fixedClock, nil))

	got := fp.Extract(ctx, "We are 4 guests arriving this Friday for three nights")
	assert.EqualValues(t, 1, client.calls.Load())
	assertSlot(t, "2025-05-23", got.StartDate)
	assertSlot(t, "2025-05-26", got.EndDate)
	require.NotNil(t, got.PartySize)
	assert.Equal(t, 4, *got.PartySize, "keyword value wins over the fallback")

	got = fp.Extract(ctx, "A cabin for 2 adults")
	assert.EqualValues(t, 1, client.calls.Load(), "nothing left to resolve")
	assertSlot(t, "cabin", got.Category)
	assert.Nil(t, got.StartDate)
}

func TestKeyword_Unresolved(t *testing.T) {
	k := NewKeyword(fixedClock)
	ctx := context.Background()

	for text, want := range map[string]bool{
		"We are 4 guests arriving this Friday":       true,
		"A suite in July":                            true,
		"A suite for the three of us":                true,
		"Rooms for 4 guests from June 10 to June 15": false,
		"A cabin for 2 adults":                       false,
	} {
		t.Run(text, func(t *testing.T) {
			assert.Equal(t, want, k.Unresolved(text, k.Extract(ctx, text)))
		})
	}
}
