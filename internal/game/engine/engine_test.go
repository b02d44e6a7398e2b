package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type denyAll struct {
	reason string
}

func (d denyAll) ValidateAction(playerID, action string, payload map[string]any) error {
	return NewRuleError(d.reason)
}

type recordingValidator struct {
	playerID string
	action   string
	payload  map[string]any
}

func (r *recordingValidator) ValidateAction(playerID, action string, payload map[string]any) error {
	r.playerID = playerID
	r.action = action
	r.payload = payload
	return nil
}

func twoSeats() []Seat {
	return []Seat{
		{MemberID: "m1", Name: "alice"},
		{MemberID: "m2", Name: "bob"},
	}
}

func TestNewGameOpensOnFirstSeat(t *testing.T) {
	e := New("room-1", twoSeats(), nil, nil)

	st := e.Serialize("m1")
	assert.Equal(t, "room-1", st.RoomID)
	assert.Len(t, st.GameID, 32, "game id should be 32 hex chars")
	assert.Equal(t, 1, st.Turn.Number)
	assert.Equal(t, "m1", st.Turn.PlayerID)
	assert.False(t, st.Turn.HasTakenAction)
	assert.False(t, st.Turn.HasPlayedLand)
}

func TestNewGameWithoutSeats(t *testing.T) {
	e := New("room-1", nil, nil, nil)
	st := e.Serialize("anyone")
	assert.Equal(t, "unknown", st.Turn.PlayerID)
	assert.Empty(t, st.Players)
}

func TestGameIDsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		e := New("room-1", twoSeats(), nil, nil)
		assert.False(t, seen[e.GameID()], "duplicate game id")
		seen[e.GameID()] = true
	}
}

func TestSerializeViewerSeesOwnSeat(t *testing.T) {
	e := New("room-1", twoSeats(), nil, nil)

	st := e.Serialize("m2")
	assert.Equal(t, "m2", st.Viewer.MemberID)
	assert.Equal(t, "bob", st.Viewer.Name)
	assert.Zero(t, st.Viewer.PendingDiscard)
}

func TestSerializeUnknownViewerFallsBackToFirstSeat(t *testing.T) {
	e := New("room-1", twoSeats(), nil, nil)

	st := e.Serialize("spectator")
	assert.Equal(t, "m1", st.Viewer.MemberID)
}

func TestSerializeJSONShape(t *testing.T) {
	e := New("room-1", twoSeats(), []Gift{{ID: "g1", Name: "Lantern"}}, nil)

	data, err := json.Marshal(e.Serialize("m1"))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))

	for _, key := range []string{"game_id", "room_id", "players", "viewer", "turn", "gifts_display"} {
		assert.Contains(t, got, key)
	}

	players, ok := got["players"].([]any)
	require.True(t, ok)
	require.Len(t, players, 2)
	first, ok := players[0].(map[string]any)
	require.True(t, ok)
	for _, key := range []string{"member_id", "name", "score", "hand_count", "lands_in_play", "gifts", "building"} {
		assert.Contains(t, first, key)
	}
	assert.Nil(t, first["building"])
	assert.Equal(t, []any{}, first["lands_in_play"], "empty lands must serialize as [], not null")

	viewer, ok := got["viewer"].(map[string]any)
	require.True(t, ok)
	for _, key := range []string{"member_id", "name", "hand", "lands_in_play", "building", "pending_discard"} {
		assert.Contains(t, viewer, key)
	}
	assert.Equal(t, []any{}, viewer["hand"], "empty hand must serialize as [], not null")

	turn, ok := got["turn"].(map[string]any)
	require.True(t, ok)
	for _, key := range []string{"number", "player_id", "has_taken_action", "has_played_land"} {
		assert.Contains(t, turn, key)
	}
}

func TestSerializeCarriesGiftsDisplay(t *testing.T) {
	gifts := []Gift{
		{ID: "lantern", Name: "Paper Lantern", Cost: map[string]int{"wood": 2}},
		{ID: "koi", Name: "Koi Pond"},
	}
	e := New("room-1", twoSeats(), gifts, nil)

	st := e.Serialize("m1")
	require.Len(t, st.GiftsDisplay, 2)
	assert.Equal(t, "lantern", st.GiftsDisplay[0].ID)
	assert.Equal(t, map[string]int{"wood": 2}, st.GiftsDisplay[0].Cost)
}

func TestApplyWithoutValidatorAllows(t *testing.T) {
	e := New("room-1", twoSeats(), nil, nil)
	assert.NoError(t, e.Apply("m1", "draw", nil))
}

func TestApplyForwardsToValidator(t *testing.T) {
	rec := &recordingValidator{}
	e := New("room-1", twoSeats(), nil, rec)

	payload := map[string]any{"card": "forest"}
	require.NoError(t, e.Apply("m2", "play_land", payload))

	assert.Equal(t, "m2", rec.playerID)
	assert.Equal(t, "play_land", rec.action)
	assert.Equal(t, payload, rec.payload)
}

func TestApplyRejectionIsRuleError(t *testing.T) {
	e := New("room-1", twoSeats(), nil, denyAll{reason: "Not your turn."})

	err := e.Apply("m2", "draw", nil)
	require.Error(t, err)

	var ruleErr *RuleError
	require.True(t, errors.As(err, &ruleErr))
	assert.Equal(t, "Not your turn.", ruleErr.Message)
	assert.Equal(t, "Not your turn.", err.Error())
}

func TestApplyRejectionLeavesStateUnchanged(t *testing.T) {
	e := New("room-1", twoSeats(), nil, denyAll{reason: "No."})

	before := e.Serialize("m1")
	_ = e.Apply("m1", "draw", nil)
	after := e.Serialize("m1")

	assert.Equal(t, before, after)
}

// Property-based tests

func TestPropertyFirstSeatAlwaysOpens(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(t, "seats")
		seats := make([]Seat, n)
		for i := range seats {
			seats[i] = Seat{MemberID: fmt.Sprintf("m%d", i), Name: fmt.Sprintf("p%d", i)}
		}

		e := New("room-1", seats, nil, nil)
		st := e.Serialize(seats[0].MemberID)
		if st.Turn.PlayerID != seats[0].MemberID {
			t.Fatalf("turn opened on %s, want first seat %s", st.Turn.PlayerID, seats[0].MemberID)
		}
		if len(st.Players) != n {
			t.Fatalf("serialized %d players, want %d", len(st.Players), n)
		}
	})
}

func TestPropertySerializeViewerMatchesSeat(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(t, "seats")
		seats := make([]Seat, n)
		for i := range seats {
			seats[i] = Seat{MemberID: fmt.Sprintf("m%d", i), Name: fmt.Sprintf("p%d", i)}
		}
		e := New("room-1", seats, nil, nil)

		pick := rapid.IntRange(0, n-1).Draw(t, "viewer")
		st := e.Serialize(seats[pick].MemberID)
		if st.Viewer.MemberID != seats[pick].MemberID {
			t.Fatalf("viewer is %s, want %s", st.Viewer.MemberID, seats[pick].MemberID)
		}
	})
}
