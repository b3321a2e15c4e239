package store

import "strings"

// schemaTemplate is written once for both drivers; the {{...}} markers are
// filled in from the dialect.
const schemaTemplate = `
CREATE TABLE IF NOT EXISTS node_snapshots (
    id          {{pk}},
    seq         BIGINT NOT NULL DEFAULT 0,
    kind        TEXT NOT NULL,
    node_id     TEXT NOT NULL DEFAULT '',
    payload     TEXT NOT NULL,
    created_at  {{ts}} NOT NULL DEFAULT ({{now}})
);
CREATE INDEX IF NOT EXISTS idx_node_snapshots_kind ON node_snapshots(kind, id);

CREATE TABLE IF NOT EXISTS network_activity (
    id                  {{pk}},
    active_nodes        INTEGER NOT NULL DEFAULT 0,
    total_cpu           DOUBLE PRECISION NOT NULL DEFAULT 0,
    total_ram           DOUBLE PRECISION NOT NULL DEFAULT 0,
    pending_tasks       INTEGER NOT NULL DEFAULT 0,
    in_queue_tasks      INTEGER NOT NULL DEFAULT 0,
    in_progress_tasks   INTEGER NOT NULL DEFAULT 0,
    completed_tasks     INTEGER NOT NULL DEFAULT 0,
    validated_tasks     INTEGER NOT NULL DEFAULT 0,
    failed_tasks        INTEGER NOT NULL DEFAULT 0,
    average_trust_index DOUBLE PRECISION NOT NULL DEFAULT 0,
    created_at          {{ts}} NOT NULL DEFAULT ({{now}})
);

CREATE TABLE IF NOT EXISTS submitted_tasks (
    node_id     TEXT NOT NULL,
    task_id     TEXT NOT NULL,
    status      TEXT NOT NULL DEFAULT '',
    payload     TEXT NOT NULL,
    updated_at  {{ts}} NOT NULL DEFAULT ({{now}}),
    PRIMARY KEY (node_id, task_id)
);

CREATE TABLE IF NOT EXISTS outbox (
    id          {{pk}},
    topic       TEXT NOT NULL,
    payload     {{blob}} NOT NULL,
    msg_type    TEXT NOT NULL DEFAULT '',
    client_id   TEXT NOT NULL DEFAULT '',
    retries     INTEGER NOT NULL DEFAULT 0,
    created_at  {{ts}} NOT NULL DEFAULT ({{now}}),
    sent_at     {{ts}}
);
CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox(sent_at) WHERE sent_at IS NULL;
`

func schema(d Dialect) string {
	return strings.NewReplacer(
		"{{pk}}", d.AutoIncrementPK(),
		"{{ts}}", d.TimestampType(),
		"{{now}}", d.Now(),
		"{{blob}}", d.BlobType(),
	).Replace(schemaTemplate)
}
