package repo

import (
	"context"

	"github.com/decorly-io/decorly/internal/modules/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CreditRepo interface {
	GetOrCreate(ctx context.Context, ownerID uuid.UUID, initialBalance int) (*model.CreditBalance, error)
	// Debit atomically decrements the balance iff it covers amount. Returns
	// false (and leaves the balance untouched) when it does not.
	Debit(ctx context.Context, ownerID uuid.UUID, amount int) (bool, error)
	// Credit atomically increments the balance, creating the row if needed.
	Credit(ctx context.Context, ownerID uuid.UUID, amount int) error
}

type creditRepo struct{ db *gorm.DB }

func NewCreditRepo(db *gorm.DB) CreditRepo {
	return &creditRepo{db: db}
}

func (r *creditRepo) GetOrCreate(ctx context.Context, ownerID uuid.UUID, initialBalance int) (*model.CreditBalance, error) {
	b := model.CreditBalance{OwnerID: ownerID, Balance: initialBalance}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner_id"}},
			DoNothing: true,
		}).
		Create(&b).Error
	if err != nil {
		return nil, err
	}

	var out model.CreditBalance
	if err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

// Debit is a single conditional UPDATE, so concurrent debits for the same
// owner serialize on the row and the balance can never go negative.
func (r *creditRepo) Debit(ctx context.Context, ownerID uuid.UUID, amount int) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.CreditBalance{}).
		Where("owner_id = ? AND balance >= ?", ownerID, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *creditRepo) Credit(ctx context.Context, ownerID uuid.UUID, amount int) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "owner_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"balance": gorm.Expr("credit_balances.balance + ?", amount),
			}),
		}).
		Create(&model.CreditBalance{OwnerID: ownerID, Balance: amount}).Error
}
