package store

import "context"

// CreateAccountKey stores the hash of apiKey for accountID.
func (s *Store) CreateAccountKey(ctx context.Context, accountID, apiKey string) (string, error) {
	id := NewID()
	_, err := s.Pool.Exec(ctx, `INSERT INTO account_keys (id, account_id, api_key_hash) VALUES ($1, $2, $3)`, id, accountID, HashAPIKey(apiKey))
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) GetAccountIDByAPIKey(ctx context.Context, apiKey string) (string, error) {
	var accountID string
	err := s.Pool.QueryRow(ctx, `SELECT account_id FROM account_keys WHERE api_key_hash = $1 AND status = 'active'`, HashAPIKey(apiKey)).Scan(&accountID)
	if err != nil {
		return "", mapNotFound(err)
	}
	return accountID, nil
}

func (s *Store) RevokeAccountKeys(ctx context.Context, accountID string) (int64, error) {
	tag, err := s.Pool.Exec(ctx, `UPDATE account_keys SET status = 'revoked' WHERE account_id = $1 AND status = 'active'`, accountID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) ListAccountKeys(ctx context.Context, accountID string) ([]AccountKey, error) {
	rows, err := s.Pool.Query(ctx, `SELECT id, account_id, status, created_at FROM account_keys WHERE account_id = $1 ORDER BY id`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []AccountKey{}
	for rows.Next() {
		var k AccountKey
		if err := rows.Scan(&k.ID, &k.AccountID, &k.Status, &k.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}
