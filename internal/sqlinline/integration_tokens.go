package sqlinline

// QSelectIntegrationToken returns the stored API key for a provider.
const QSelectIntegrationToken = `--sql 3f1c9a2e-5b7d-4e8a-9c21-7d0e4b6a8f13
select token
from integration_tokens
where provider = $1::text
  and token <> ''
limit 1;
`

// QDescribeIntegrationToken returns the stored key with its properties and
// last update time.
const QDescribeIntegrationToken = `--sql 6d8b2e47-a1f3-4c09-9e75-b2c4d0f813a6
select token, properties, updated_at
from integration_tokens
where provider = $1::text
  and token <> ''
limit 1;
`

// QUpsertIntegrationToken stores (or replaces) the API key for a provider.
const QUpsertIntegrationToken = `--sql 9b2d4f61-0c3e-4a7b-8e5f-1a6c2d9e7b40
with incoming as (
    select
        $1::text as provider,
        $2::text as token,
        coalesce($3::jsonb, '{}'::jsonb) as properties
)
insert into integration_tokens (id, provider, token, properties, created_at, updated_at)
values (gen_random_uuid(), (select provider from incoming), (select token from incoming), (select properties from incoming), now(), now())
on conflict (provider) do update set
    token = excluded.token,
    properties = excluded.properties,
    updated_at = now();
`

// QDeleteIntegrationToken removes the API key for a provider.
const QDeleteIntegrationToken = `--sql c47e8a10-2d9f-4b63-a5e1-8f3b0c6d2e95
delete from integration_tokens
where provider = $1::text;
`

// QEnsureIntegrationTokens creates the token table when the studio runs
// against a fresh database.
const QEnsureIntegrationTokens = `--sql 5e0a7c3b-91d4-4f2e-b8a6-d3c1f0e9a274
create table if not exists integration_tokens (
    id uuid primary key,
    provider text not null unique,
    token text not null,
    properties jsonb not null default '{}'::jsonb,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);
`
