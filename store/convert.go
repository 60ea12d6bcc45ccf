package store

import (
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"

	"github.com/rajdeep-singha/sXLM/core"
	"github.com/rajdeep-singha/sXLM/queue"
)

func (r positionRecord) toPosition() (*core.Position, error) {
	accountId, err := uuid.FromString(r.AccountId)
	if err != nil {
		return nil, err
	}
	collateral, err := decimal.NewFromString(r.Collateral)
	if err != nil {
		return nil, err
	}
	debt, err := decimal.NewFromString(r.Debt)
	if err != nil {
		return nil, err
	}

	return &core.Position{
		AccountId:  accountId,
		Collateral: collateral,
		Debt:       debt,
		LastUpdate: r.LastUpdate,
	}, nil
}

func (r requestRecord) toRequest() (*queue.Request, error) {
	accountId, err := uuid.FromString(r.AccountId)
	if err != nil {
		return nil, err
	}
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return nil, err
	}

	return &queue.Request{
		Id:        r.Id,
		AccountId: accountId,
		Amount:    amount,
		Status:    queue.Status(r.Status),
		CreatedAt: r.CreatedAt,
		UnlockAt:  r.UnlockAt,
	}, nil
}

func toRequests(records []requestRecord) ([]*queue.Request, error) {
	requests := make([]*queue.Request, 0, len(records))
	for _, record := range records {
		request, err := record.toRequest()
		if err != nil {
			return nil, err
		}
		requests = append(requests, request)
	}
	return requests, nil
}
