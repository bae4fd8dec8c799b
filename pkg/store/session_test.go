package store

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrimKeepsRecentHistory(t *testing.T) {
	sess := NewSession("s1")
	for i := 0; i < 21; i++ {
		sess.Append(RoleUser, fmt.Sprintf("сообщение %d", i))
	}

	sess.Trim()

	assert.Len(t, sess.History, 10)
	assert.Equal(t, "сообщение 11", sess.History[0].Content)
	assert.Equal(t, "сообщение 20", sess.History[9].Content)
}

func TestTrimIsNoopBelowTrigger(t *testing.T) {
	sess := NewSession("s1")
	for i := 0; i < 20; i++ {
		sess.Append(RoleUser, "сообщение")
	}

	sess.Trim()
	assert.Len(t, sess.History, 20)
}

func TestResetKeepsHistoryAndCache(t *testing.T) {
	sess := NewSession("s1")
	sess.State = StateAwaitingConfirmation
	sess.Data["work_description"] = "кровля"
	sess.Append(RoleUser, "вопрос")
	sess.LastRAGContext = "контекст"
	sess.LastRAGSources = []Passage{{Header: "5.1"}}

	sess.Reset()

	assert.Equal(t, StateIdle, sess.State)
	assert.Empty(t, sess.Data)
	assert.Len(t, sess.History, 1)
	assert.Equal(t, "контекст", sess.LastRAGContext)
	assert.Len(t, sess.LastRAGSources, 1)
}
