package sqlinline

// QGetUserAccount returns the plan tier and current credit balance for a user.
const QGetUserAccount = `--sql 1556288e-f44b-418c-83cd-26bc468bcb96
select plan, credits
from users
where id = $1::uuid;
`

// QCreateUser provisions a user row for development and operator tooling.
const QCreateUser = `--sql ee0bdba3-2e34-4513-a7c9-f9d05c9446aa
insert into users (id, plan, credits)
values (gen_random_uuid(), $1::text, $2::bigint)
returning id;
`

// QGrantCredits tops up a balance out of band and records the movement.
const QGrantCredits = `--sql 1035c0a5-4ab7-49ad-9153-366792dddb7a
with granted as (
    update users
    set credits = credits + $2::bigint,
        updated_at = now()
    where id = $1::uuid
    returning id, credits
),
ev as (
    insert into credit_events (user_id, delta, reason)
    select id, $2::bigint, 'grant'
    from granted
)
select credits from granted;
`
