package actor

import (
	"context"
	"testing"
	"time"

	"pgregory.net/rapid"
)

// TestFrameRoundTripProperty checks the wire Frame codec over arbitrary
// senders, recipient paths, and payload bytes, rather than the single fixed
// scenario TestFrameEncodeDecodeRoundTrip (hub_test.go) exercises.
func TestFrameRoundTripProperty(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		sender := NodeID(rapid.StringMatching(`[a-zA-Z0-9][a-zA-Z0-9_.-]{0,15}`).
			Draw(t, "sender"))

		numSegments := rapid.IntRange(0, 4).Draw(t, "numSegments")
		segments := make([]string, numSegments)
		for i := range segments {
			segments[i] = rapid.StringMatching(`[a-zA-Z0-9_-]{1,12}`).
				Draw(t, "segment")
		}

		payload := []byte(rapid.String().Draw(t, "payload"))

		f := Frame{
			Kind:      frameKindUser,
			Sender:    sender,
			Recipient: Path{Segments: segments},
			Payload:   payload,
		}

		raw := encodeFrame(f)
		got, err := decodeFrame(raw)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}

		if got.Kind != f.Kind {
			t.Fatalf("kind mismatch: got %v want %v", got.Kind, f.Kind)
		}
		if got.Sender != f.Sender {
			t.Fatalf("sender mismatch: got %q want %q", got.Sender, f.Sender)
		}
		if got.Recipient.String() != f.Recipient.String() {
			t.Fatalf("recipient mismatch: got %q want %q",
				got.Recipient.String(), f.Recipient.String())
		}
		if string(got.Payload) != string(f.Payload) {
			t.Fatalf("payload mismatch: got %q want %q", got.Payload, f.Payload)
		}
	})
}

// TestPerSenderRecipientOrderingProperty checks that messages delivered to a
// single Cell from a single sending goroutine arrive in send order,
// regardless of how many messages are sent or the mailbox capacity, rather
// than the fixed two-or-three-message scenarios elsewhere in this package.
func TestPerSenderRecipientOrderingProperty(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		node := NewNode(NodeConfig{GuardianStrategy: OneForOneStrategy(Stop)})
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = node.Shutdown(ctx)
		}()

		numMessages := rapid.IntRange(1, 50).Draw(t, "numMessages")

		behavior := &recordingBehavior{}
		// Capacity covers every message the test sends, so TrySend (the
		// kernel's non-blocking delivery path, see Cell.deliver) never
		// overflows into the dead-letter office: overflow behavior is
		// already covered by TestDeadLetterOnFullMailbox, this property
		// is about order, not capacity.
		ref, err := node.Spawn(
			"worker", Single(behavior), WithMailboxCapacity(numMessages),
		)
		if err != nil {
			t.Fatalf("spawn: %v", err)
		}

		for i := 0; i < numMessages; i++ {
			ref.Send(context.Background(), i, nil)
		}

		deadline := time.Now().Add(2 * time.Second)
		for len(behavior.snapshot()) < numMessages {
			if time.Now().After(deadline) {
				t.Fatalf("timed out: got %d of %d messages",
					len(behavior.snapshot()), numMessages)
			}
			time.Sleep(time.Millisecond)
		}

		for i, msg := range behavior.snapshot() {
			n, ok := msg.(int)
			if !ok || n != i {
				t.Fatalf("fifo violated at index %d: got %v want %d", i, msg, i)
			}
		}
	})
}
