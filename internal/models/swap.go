package models

import "time"

type SwapStatus string

const (
	SwapStatusPending   SwapStatus = "pending"
	SwapStatusAccepted  SwapStatus = "accepted"
	SwapStatusRejected  SwapStatus = "rejected"
	SwapStatusCompleted SwapStatus = "completed"
	SwapStatusCancelled SwapStatus = "cancelled"
)

type SwapType string

const (
	SwapTypeDirect SwapType = "direct"
	SwapTypePoints SwapType = "points"
)

const MaxSwapMessageLength = 500

var swapTransitions = map[SwapStatus][]SwapStatus{
	SwapStatusPending:  {SwapStatusAccepted, SwapStatusRejected, SwapStatusCancelled},
	SwapStatusAccepted: {SwapStatusCompleted, SwapStatusCancelled},
}

func (s SwapStatus) IsTerminal() bool {
	switch s {
	case SwapStatusRejected, SwapStatusCompleted, SwapStatusCancelled:
		return true
	}
	return false
}

func (s SwapStatus) Valid() bool {
	switch s {
	case SwapStatusPending, SwapStatusAccepted, SwapStatusRejected, SwapStatusCompleted, SwapStatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether a swap in status s may move to next.
func (s SwapStatus) CanTransition(next SwapStatus) bool {
	for _, allowed := range swapTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (t SwapType) Valid() bool {
	return t == SwapTypeDirect || t == SwapTypePoints
}

type SwapRequest struct {
	ID            string
	RequesterID   string
	ReceiverID    string
	ItemID        string
	Status        SwapStatus
	SwapType      SwapType
	PointsOffered int
	Message       string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsParty reports whether userID is the requester or the receiver.
func (s SwapRequest) IsParty(userID string) bool {
	return userID == s.RequesterID || userID == s.ReceiverID
}
