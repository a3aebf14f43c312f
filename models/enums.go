package models

import (
	"encoding/json"
	"errors"
	"strconv"
)

type ProductType string

const (
	ProductTypeSingle   ProductType = "S"
	ProductTypeVariable ProductType = "V"
)

// convert enum to send response
func (t ProductType) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(string(t))), nil
}

// convert input to enum type
func (t *ProductType) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("product type must be string")
	}
	switch str {
	case "S", "single":
		*t = ProductTypeSingle
	case "V", "variable":
		*t = ProductTypeVariable
	default:
		return errors.New("invalid product type")
	}
	return nil
}

type TransferStatus string

const (
	TransferStatusPending   TransferStatus = "Pending"
	TransferStatusCompleted TransferStatus = "Completed"
	TransferStatusFailed    TransferStatus = "Failed"
)

func (t TransferStatus) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(string(t))), nil
}

func (t *TransferStatus) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("transfer status must be string")
	}
	switch str {
	case "Pending":
		*t = TransferStatusPending
	case "Completed":
		*t = TransferStatusCompleted
	case "Failed":
		*t = TransferStatusFailed
	default:
		return errors.New("invalid transfer status")
	}
	return nil
}

type UserRole string

const (
	UserRoleAdmin UserRole = "A"
	UserRoleOwner UserRole = "O"
	UserRoleClerk UserRole = "C"
)

// PubSubMessageAction marks outbox rows for downstream consumers.
type PubSubMessageAction string

const (
	PubSubMessageActionCreate PubSubMessageAction = "C"
	PubSubMessageActionUpdate PubSubMessageAction = "U"
	PubSubMessageActionDelete PubSubMessageAction = "D"
)

// SyncReferenceType identifies which document an outbox row refers to.
type SyncReferenceType string

const (
	SyncReferenceTypeProduct       SyncReferenceType = "PD"
	SyncReferenceTypeWarehouse     SyncReferenceType = "WH"
	SyncReferenceTypeStockTransfer SyncReferenceType = "ST"
)
