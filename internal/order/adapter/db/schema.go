package db

// Schema creates the order tables when they do not exist yet.
const Schema = `
CREATE TABLE IF NOT EXISTS tenants (
    tenant_id   TEXT PRIMARY KEY,
    name        TEXT NOT NULL DEFAULT 'Default Tenant',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS users (
    user_id     BIGSERIAL PRIMARY KEY,
    tenant_id   TEXT REFERENCES tenants(tenant_id) ON DELETE CASCADE,
    username    TEXT NOT NULL,
    role        TEXT NOT NULL CHECK (role IN ('superadmin', 'manager', 'kitchen', 'rider')),
    UNIQUE (tenant_id, username)
);

CREATE TABLE IF NOT EXISTS menu_items (
    item_id             BIGSERIAL PRIMARY KEY,
    tenant_id           TEXT NOT NULL REFERENCES tenants(tenant_id) ON DELETE CASCADE,
    name                TEXT NOT NULL,
    price               NUMERIC(10, 2) NOT NULL CHECK (price >= 0),
    stock_quantity      INTEGER NOT NULL DEFAULT 0,
    low_stock_threshold INTEGER NOT NULL DEFAULT 5,
    CONSTRAINT menu_items_stock_nonnegative CHECK (stock_quantity >= 0)
);

CREATE TABLE IF NOT EXISTS orders (
    order_id                BIGSERIAL PRIMARY KEY,
    tenant_id               TEXT NOT NULL REFERENCES tenants(tenant_id) ON DELETE CASCADE,
    status                  TEXT NOT NULL DEFAULT 'pending'
                            CHECK (status IN ('pending', 'preparing', 'completed', 'enroute', 'delivered', 'canceled')),
    total_price             NUMERIC(12, 2) NOT NULL CHECK (total_price >= 0),
    customer_name           TEXT,
    customer_phone          TEXT,
    is_delivery             BOOLEAN NOT NULL DEFAULT FALSE,
    customer_location       TEXT,
    rider_id                BIGINT REFERENCES users(user_id) ON DELETE SET NULL,
    preparation_start_time  TIMESTAMPTZ,
    preparation_end_time    TIMESTAMPTZ,
    delivery_start_time     TIMESTAMPTZ,
    delivery_end_time       TIMESTAMPTZ,
    created_at              TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS orders_tenant_created_idx ON orders (tenant_id, created_at DESC);
CREATE INDEX IF NOT EXISTS orders_rider_enroute_idx ON orders (tenant_id, rider_id) WHERE status = 'enroute';

-- item_id carries no foreign key: lines outlive deleted menu items.
CREATE TABLE IF NOT EXISTS order_items (
    order_id    BIGINT NOT NULL REFERENCES orders(order_id) ON DELETE CASCADE,
    tenant_id   TEXT NOT NULL,
    item_id     BIGINT NOT NULL,
    quantity    INTEGER NOT NULL CHECK (quantity > 0),
    price       NUMERIC(10, 2) NOT NULL,
    name        TEXT NOT NULL,
    PRIMARY KEY (order_id, item_id)
);

-- Append only. order_id is not a foreign key so canceled orders keep their trail.
CREATE TABLE IF NOT EXISTS order_history (
    history_id       UUID PRIMARY KEY,
    order_id         BIGINT NOT NULL,
    tenant_id        TEXT NOT NULL REFERENCES tenants(tenant_id) ON DELETE CASCADE,
    action           TEXT NOT NULL CHECK (action IN ('created', 'updated', 'canceled')),
    details          JSONB NOT NULL,
    changed_by       TEXT NOT NULL,
    change_timestamp TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS order_history_tenant_idx ON order_history (tenant_id, change_timestamp DESC);
`
