package handler

import "leasecover/internal/policy/models"

type PolicyListResponse struct {
	Policies []*models.Policy `json:"policies"`
	Count    int              `json:"count"`
}

type ActivityListResponse struct {
	Activities []*models.Activity `json:"activities"`
}

type ReferenceListResponse struct {
	References []*models.Reference `json:"references"`
}

type DocumentListResponse struct {
	Documents []*models.Document `json:"documents"`
}

type ContractListResponse struct {
	Contracts []*models.Contract `json:"contracts"`
}

type PaymentListResponse struct {
	Payments []*models.Payment `json:"payments"`
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
