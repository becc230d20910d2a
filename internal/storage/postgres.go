package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/stefa168/growatt-server/internal/protocol"
)

// Postgres is the production Sink, matching the tables the original service
// wrote: inverter_messages + message_data for decoded traffic and
// remote_messages for raw frames.
type Postgres struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

func OpenPostgres(ctx context.Context, dsn string, log zerolog.Logger) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: opening pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: connecting to database: %w", err)
	}
	return &Postgres{pool: pool, log: log}, nil
}

func (p *Postgres) SaveMessage(ctx context.Context, msg *protocol.DecodedMessage) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO inverter_messages (id, connection_id, direction, type, header, raw, inverter_sn, quality, time)
		 VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9)`,
		msg.ID, msg.ConnID, msg.Direction.String(), msg.Type.String(),
		msg.Header, msg.Raw, msg.Serial, msg.Quality.String(), msg.Time)
	if err != nil {
		return fmt.Errorf("storage: inserting message: %w", err)
	}

	if len(msg.Fields) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, f := range msg.Fields {
		batch.Queue(
			`INSERT INTO message_data (message_id, key, value) VALUES ($1, $2, $3)`,
			msg.ID, f.Key, f.Value)
	}
	if err := p.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("storage: inserting %d fields: %w", len(msg.Fields), err)
	}
	return nil
}

func (p *Postgres) SaveRaw(ctx context.Context, rec RawRecord) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO remote_messages (connection_id, direction, raw, time) VALUES ($1, $2, $3, $4)`,
		rec.ConnID, rec.Direction.String(), rec.Raw, rec.Time)
	if err != nil {
		return fmt.Errorf("storage: inserting raw frame: %w", err)
	}
	return nil
}

func (p *Postgres) BackfillSerial(ctx context.Context, connID uuid.UUID, serial string) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE inverter_messages SET inverter_sn = $2 WHERE connection_id = $1 AND inverter_sn IS NULL`,
		connID, serial)
	if err != nil {
		return fmt.Errorf("storage: backfilling serial: %w", err)
	}
	if n := tag.RowsAffected(); n > 0 {
		p.log.Debug().Int64("rows", n).Str("serial", serial).Msg("serial backfilled")
	}
	return nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}
