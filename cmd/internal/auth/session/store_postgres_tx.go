package session

import (
	"context"

	"github.com/jackc/pgx/v5"
)

func upsertTx(ctx context.Context, tx pgx.Tx, table string, sess Session) error {
	data, err := encodeData(sess.Data)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO `+table+` (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		   SET user_id = EXCLUDED.user_id,
		       data = EXCLUDED.data,
		       data_hash = EXCLUDED.data_hash,
		       updated_at = EXCLUDED.updated_at
	`, sess.ID, nullIfEmpty(sess.UserID), data, sess.Hash, sess.CreatedAt, sess.UpdatedAt)
	return err
}

func deleteTx(ctx context.Context, tx pgx.Tx, table, id string) error {
	_, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE id = $1`, id)
	return err
}
