package handler

import "eligo/internal/migration/models"

type SkippedProductResponse struct {
	ProductCode string `json:"product_code"`
	Reason      string `json:"reason"`
}

type MigrateResponse struct {
	Status              string                   `json:"status"`
	AccountID           string                   `json:"account_id,omitempty"`
	MigratedRecordCount int                      `json:"migrated_record_count"`
	SkippedProducts     []SkippedProductResponse `json:"skipped_products"`
}

func fromOutcome(o *models.Outcome) MigrateResponse {
	resp := MigrateResponse{
		Status:              string(o.Status),
		MigratedRecordCount: o.MigratedRecordCount,
		SkippedProducts:     make([]SkippedProductResponse, 0, len(o.SkippedProducts)),
	}
	if !o.AccountID.IsNil() {
		resp.AccountID = o.AccountID.String()
	}
	for _, p := range o.SkippedProducts {
		resp.SkippedProducts = append(resp.SkippedProducts, SkippedProductResponse{ProductCode: p.ProductCode, Reason: p.Reason})
	}
	return resp
}
