// Package session persists per-chat conversation state. Each chat is driven
// by a single actor at a time, so the store needs durability but no
// cross-session transactions.
package session

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/repuestoselcholo/devolucionesbot/internal/database"
	"github.com/repuestoselcholo/devolucionesbot/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// State is the in-memory view of one chat's conversation: the active flow,
// the current step and the partially built drafts.
type State struct {
	ChatID   int64
	Flow     string
	Step     string
	Return   models.ReturnDraft
	Supplier models.SupplierDraft
}

// drafts is the JSON shape stored in the session row's draft column.
type drafts struct {
	Return   models.ReturnDraft   `json:"return,omitempty"`
	Supplier models.SupplierDraft `json:"supplier,omitempty"`
}

// Idle flow/step markers shared with the engine.
const (
	FlowNone = "none"
	StepIdle = "idle"
)

// Store reads and writes conversation state rows.
type Store struct {
	db *database.DB
}

// NewStore creates a session store backed by the given database.
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// Get loads the state for a chat, creating an empty idle state if the chat
// has never been seen.
func (s *Store) Get(chatID int64) (*State, error) {
	var row models.Session
	err := s.db.First(&row, "chat_id = ?", chatID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &State{ChatID: chatID, Flow: FlowNone, Step: StepIdle}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session %d: %w", chatID, err)
	}

	st := &State{ChatID: chatID, Flow: row.Flow, Step: row.Step}
	if len(row.Draft) > 0 {
		var d drafts
		if err := json.Unmarshal(row.Draft, &d); err != nil {
			// A corrupt draft is unrecoverable mid-dialogue; start over.
			return &State{ChatID: chatID, Flow: FlowNone, Step: StepIdle}, nil
		}
		st.Return = d.Return
		st.Supplier = d.Supplier
	}
	return st, nil
}

// Save persists the state synchronously, upserting on chat id.
func (s *Store) Save(st *State) error {
	raw, err := json.Marshal(drafts{Return: st.Return, Supplier: st.Supplier})
	if err != nil {
		return fmt.Errorf("marshal session %d: %w", st.ChatID, err)
	}

	row := models.Session{
		ChatID: st.ChatID,
		Flow:   st.Flow,
		Step:   st.Step,
		Draft:  raw,
	}
	err = s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chat_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"flow", "step", "draft", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save session %d: %w", st.ChatID, err)
	}
	return nil
}

// Clear resets a chat back to the idle state with empty drafts.
func (s *Store) Clear(chatID int64) error {
	return s.Save(&State{ChatID: chatID, Flow: FlowNone, Step: StepIdle})
}

// Reset empties the state in place, mirroring what Clear persists.
func (st *State) Reset() {
	st.Flow = FlowNone
	st.Step = StepIdle
	st.Return = models.ReturnDraft{}
	st.Supplier = models.SupplierDraft{}
}
