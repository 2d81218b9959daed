package ynabsync

import (
	"context"

	"k8s.io/klog"
)

// DefaultBatchSize is the number of transactions sent per request.
const DefaultBatchSize = 50

// Ledger is where transactions end up.
type Ledger interface {
	CreateTransactions(ctx context.Context, transactions []Transaction) (*CreateTransactionsResponse, error)
}

// BatchResult covers transactions[Offset:Offset+Size]. Err is nil when the
// ledger accepted the batch.
type BatchResult struct {
	Offset     int
	Size       int
	Duplicates int
	Err        error
}

// UploadResult counts transactions the ledger created in Uploaded and those
// it already had in Duplicates. Both count as confirmed.
type UploadResult struct {
	Success    bool
	Uploaded   int
	Duplicates int
	Total      int
	Batches    []BatchResult
}

type Uploader struct {
	ledger    Ledger
	batchSize int
}

func NewUploader(ledger Ledger, batchSize int) *Uploader {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Uploader{ledger: ledger, batchSize: batchSize}
}

// Upload sends transactions in order, one request per batch. A failed batch is
// logged and the remaining batches are still attempted.
func (u *Uploader) Upload(ctx context.Context, transactions []Transaction) UploadResult {
	result := UploadResult{Success: true, Total: len(transactions)}

	for i := 0; i < len(transactions); i += u.batchSize {
		endIndex := i + u.batchSize
		if endIndex > len(transactions) {
			endIndex = len(transactions)
		}

		batch := BatchResult{Offset: i, Size: endIndex - i}
		response, err := u.ledger.CreateTransactions(ctx, transactions[i:endIndex])
		if err != nil {
			klog.Errorf("Failed to upload transactions %d-%d of %d: %v\n", i+1, endIndex, len(transactions), err)
			batch.Err = err
			result.Success = false
			result.Batches = append(result.Batches, batch)
			continue
		}

		if response != nil && len(response.Data.DuplicateImportIDs) > 0 {
			batch.Duplicates = len(response.Data.DuplicateImportIDs)
			klog.Warningf("Ledger already had %d of transactions %d-%d\n", batch.Duplicates, i+1, endIndex)
		}

		result.Uploaded += batch.Size - batch.Duplicates
		result.Duplicates += batch.Duplicates
		result.Batches = append(result.Batches, batch)
		klog.Infof("Uploaded transactions %d-%d of %d\n", i+1, endIndex, len(transactions))
	}

	return result
}

// DryRunLedger accepts everything without sending it anywhere.
type DryRunLedger struct{}

func (DryRunLedger) CreateTransactions(_ context.Context, transactions []Transaction) (*CreateTransactionsResponse, error) {
	for _, t := range transactions {
		klog.Infof("[dry-run] %s %s %d %s\n", t.Date, t.PayeeName, t.Amount, t.AccountID)
	}
	return &CreateTransactionsResponse{}, nil
}
