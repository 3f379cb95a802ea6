package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Engineer-Box/gmdemo/internal/domain"
)

// exportPartSize is the multipart chunk used for receipt exports.
const exportPartSize int64 = 8 * 1024 * 1024

// ReceiptArchive implements domain.SettlementArchive. Each settled battle
// gets one immutable JSON object; bulk exports are written as JSONL.
type ReceiptArchive struct {
	writer domain.BlobWriter
	reader domain.BlobReader
}

var _ domain.SettlementArchive = (*ReceiptArchive)(nil)

// NewReceiptArchive creates a ReceiptArchive.
func NewReceiptArchive(writer domain.BlobWriter, reader domain.BlobReader) *ReceiptArchive {
	return &ReceiptArchive{writer: writer, reader: reader}
}

// receiptPath is the object key of a battle's receipt:
//
//	settlements/<battle id>.json
func receiptPath(battleID string) string {
	return "settlements/" + battleID + ".json"
}

// exportPath partitions bulk exports by the day they were taken.
//
//	exports/settlements/2026-05-10T180000Z.jsonl
func exportPath(at time.Time) string {
	return "exports/settlements/" + at.UTC().Format("2006-01-02T150405Z") + ".jsonl"
}

// Put stores r unless a receipt for the battle already exists.
func (a *ReceiptArchive) Put(ctx context.Context, r domain.SettlementReceipt) error {
	if r.BattleID == "" {
		return fmt.Errorf("s3blob: archive receipt: %w: empty battle id", domain.ErrInvalidInput)
	}
	path := receiptPath(r.BattleID)

	exists, err := a.reader.Exists(ctx, path)
	if err != nil {
		return fmt.Errorf("s3blob: archive receipt %s: %w", r.BattleID, err)
	}
	if exists {
		return nil
	}

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("s3blob: encode receipt %s: %w", r.BattleID, err)
	}
	if err := a.writer.Put(ctx, path, bytes.NewReader(data), "application/json"); err != nil {
		return fmt.Errorf("s3blob: archive receipt %s: %w", r.BattleID, err)
	}
	return nil
}

// Get loads the receipt of a settled battle.
func (a *ReceiptArchive) Get(ctx context.Context, battleID string) (domain.SettlementReceipt, error) {
	body, err := a.reader.Get(ctx, receiptPath(battleID))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.SettlementReceipt{}, domain.ErrNotFound
		}
		return domain.SettlementReceipt{}, fmt.Errorf("s3blob: get receipt %s: %w", battleID, err)
	}
	defer body.Close()

	var r domain.SettlementReceipt
	if err := json.NewDecoder(body).Decode(&r); err != nil {
		return domain.SettlementReceipt{}, fmt.Errorf("s3blob: decode receipt %s: %w", battleID, err)
	}
	return r, nil
}

// Export streams receipts as JSONL into one multipart object and returns its
// key. next yields receipts until it returns false.
func (a *ReceiptArchive) Export(ctx context.Context, at time.Time, next func() (domain.SettlementReceipt, bool, error)) (string, int, error) {
	path := exportPath(at)
	pr, pw := io.Pipe()

	count := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		enc := json.NewEncoder(pw)
		enc.SetEscapeHTML(false)
		for {
			r, ok, err := next()
			if err != nil {
				pw.CloseWithError(err)
				return
			}
			if !ok {
				pw.Close()
				return
			}
			if err := enc.Encode(r); err != nil {
				pw.CloseWithError(fmt.Errorf("jsonl encode receipt %s: %w", r.BattleID, err))
				return
			}
			count++
		}
	}()

	if err := a.writer.PutMultipart(ctx, path, pr, exportPartSize); err != nil {
		pr.CloseWithError(err)
		<-done
		return "", 0, fmt.Errorf("s3blob: export receipts: %w", err)
	}
	<-done
	return path, count, nil
}
