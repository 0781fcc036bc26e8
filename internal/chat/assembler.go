package chat

import (
	"fmt"
	"strings"
	"time"

	"datachat-backend/internal/chunk"

	"github.com/google/uuid"
)

// PlaceholderContent is shown while the first chunks are in flight.
const PlaceholderContent = "Analyzing your question..."

// FailureContent replaces the placeholder when the stream could not be opened
// or produced no chunks before failing.
const FailureContent = "Something went wrong while generating the answer. Please try again."

// Assembler folds the ordered chunk sequence of one analysis response into a
// single evolving assistant message. It owns exactly one message in the store,
// minted before the request is opened, and updates it on every chunk so the
// transcript re-renders incrementally.
//
// Text deltas that arrive while a code block is executing are buffered, not
// dropped, and flushed once execution ends or the stream completes.
type Assembler struct {
	store *MessageStore
	msgID uuid.UUID

	buffered    strings.Builder
	textStarted bool
	done        bool
}

func NewAssembler(store *MessageStore) *Assembler {
	msg := Message{
		ID:        uuid.New(),
		Role:      RoleAssistant,
		Content:   PlaceholderContent,
		Timestamp: time.Now().UTC(),
		Streaming: true,
	}
	store.Append(msg)

	return &Assembler{store: store, msgID: msg.ID}
}

func (a *Assembler) MessageID() uuid.UUID {
	return a.msgID
}

func (a *Assembler) Done() bool {
	return a.done
}

// Apply folds one chunk into the message. It reports done=true once a
// terminal chunk (completion or error) has been seen; callers should stop
// feeding chunks after that.
func (a *Assembler) Apply(c chunk.Chunk) (done bool, err error) {
	if a.done {
		return true, nil
	}

	switch c := c.(type) {
	case *chunk.AnalysisStart:
		a.setProgress(c.Content)
	case *chunk.StepUpdate:
		a.setProgress(c.Content)
	case *chunk.CodeCompleteDisplay:
		a.installCode(c.Code)
	case *chunk.CodeExecutionResult:
		a.finishCode(c.Content)
	case *chunk.ChartGenerated:
		a.update(func(msg *Message) { msg.Chart = c.ChartData })
	case *chunk.TextStream:
		a.appendText(c.Content)
	case *chunk.AnalysisComplete:
		a.complete(c)
		a.done = true
	case *chunk.StreamError:
		a.fail(c.Content)
		a.done = true
	default:
		return a.done, fmt.Errorf("unhandled chunk variant %T", c)
	}

	return a.done, nil
}

// Finish flushes any buffered text and clears the streaming flag. It is
// called on natural end of stream; it is a no-op beyond the flush if a
// terminal chunk already arrived. The final message is returned for
// persistence.
func (a *Assembler) Finish() Message {
	a.flushBuffer()
	a.update(func(msg *Message) {
		msg.Streaming = false
		if msg.Code != nil {
			msg.Code.Executing = false
		}
	})
	a.done = true

	msg, _ := a.store.Get(a.msgID)
	return msg
}

// Fail replaces the message content with a generic failure notice. Used when
// the stream could not be opened at all; chunk-level errors arrive as
// StreamError chunks instead.
func (a *Assembler) Fail() Message {
	a.fail(FailureContent)
	a.done = true

	msg, _ := a.store.Get(a.msgID)
	return msg
}

func (a *Assembler) update(mutate func(*Message)) {
	a.store.UpdateByID(a.msgID, mutate)
}

// setProgress replaces the placeholder with a human-readable progress string.
// Once real answer text has started streaming, progress updates are ignored
// so they cannot clobber the answer.
func (a *Assembler) setProgress(content string) {
	if a.textStarted {
		return
	}
	a.update(func(msg *Message) {
		if msg.Code == nil {
			msg.Content = content
		}
	})
}

// installCode attaches the generated code block, marked executing, and clears
// any partial prose so code and progress text are not mixed in one bubble.
func (a *Assembler) installCode(code string) {
	a.textStarted = false
	a.update(func(msg *Message) {
		msg.Code = &CodeBlock{
			Lines:     strings.Split(strings.TrimRight(code, "\n"), "\n"),
			Executing: true,
		}
		msg.Content = ""
	})
}

func (a *Assembler) finishCode(result string) {
	a.update(func(msg *Message) {
		if msg.Code == nil {
			return
		}
		msg.Code.Executing = false
		msg.Code.Result = result
	})
	// Execution is over, release any text that streamed in alongside it.
	a.flushBuffer()
}

func (a *Assembler) appendText(delta string) {
	if a.executing() {
		a.buffered.WriteString(delta)
		return
	}
	a.update(func(msg *Message) {
		if !a.textStarted {
			// First delta replaces the progress placeholder.
			msg.Content = delta
		} else {
			msg.Content += delta
		}
	})
	a.textStarted = true
}

func (a *Assembler) complete(c *chunk.AnalysisComplete) {
	a.flushBuffer()
	a.update(func(msg *Message) {
		// If no answer text streamed, the terminal chunk's answer is all we get.
		if !a.textStarted && c.Answer != "" {
			msg.Content = c.Answer
			a.textStarted = true
		}
		if len(c.ChartData) > 0 {
			msg.Chart = c.ChartData
		}
		if len(c.FollowUpQuestions) > 0 {
			msg.FollowUpQuestions = c.FollowUpQuestions
		}
		if msg.Code == nil && c.CodeExecution != nil && len(c.CodeExecution.CodeChunks) > 0 {
			msg.Code = &CodeBlock{
				Lines:  strings.Split(strings.TrimRight(strings.Join(c.CodeExecution.CodeChunks, "\n"), "\n"), "\n"),
				Result: c.CodeExecution.Output,
			}
		}
		if msg.Code != nil {
			msg.Code.Executing = false
		}
		msg.Streaming = false
	})
}

func (a *Assembler) fail(content string) {
	a.update(func(msg *Message) {
		msg.Content = content
		msg.Streaming = false
		if msg.Code != nil {
			msg.Code.Executing = false
		}
	})
}

func (a *Assembler) executing() bool {
	msg, ok := a.store.Get(a.msgID)
	return ok && msg.Code != nil && msg.Code.Executing
}

func (a *Assembler) flushBuffer() {
	if a.buffered.Len() == 0 {
		return
	}
	text := a.buffered.String()
	a.buffered.Reset()

	a.update(func(msg *Message) {
		if !a.textStarted {
			msg.Content = text
		} else {
			msg.Content += text
		}
	})
	a.textStarted = true
}
