package sqlinline

// QEnqueueJob reserves credits and inserts the job row in one statement so a
// job can never exist without its reservation. The conditional balance update
// fails the whole statement (zero rows) when credits are short.
// $1 user_id, $2 job_type, $3 payload, $4 image_count, $5 quality,
// $6 credits_cost, $7 priority_score.
const QEnqueueJob = `--sql c9148927-59c3-4cdc-a910-f6011e1261c6
with input as (
    select
        $1::uuid   as user_id,
        $2::text   as job_type,
        $3::jsonb  as payload,
        $4::int    as image_count,
        $5::text   as quality,
        $6::bigint as credits_cost,
        $7::bigint as priority_score
),
reserved as (
    update users u
    set credits = u.credits - (select credits_cost from input),
        updated_at = now()
    where u.id = (select user_id from input)
      and u.credits >= (select credits_cost from input)
    returning u.credits
),
ins_job as (
    insert into jobs (id, user_id, job_type, status, payload, image_count, quality, priority_score, credits_reserved)
    select gen_random_uuid(), user_id, job_type, 'queued', payload, image_count, quality, priority_score, credits_cost
    from input
    where exists (select 1 from reserved)
    returning id, user_id, credits_reserved
),
ev as (
    insert into credit_events (user_id, job_id, delta, reason)
    select user_id, id, -credits_reserved, 'reserve'
    from ins_job
)
select ins_job.id, reserved.credits
from ins_job, reserved;
`

// QAdmissionCounts returns the rolling-hour created count and the number of
// currently active (queued or processing) jobs for a user in one round trip.
const QAdmissionCounts = `--sql 3b2d36d5-277a-430a-aad5-46e8a7c2c237
select
    count(*) filter (where created_at > now() - interval '60 minutes') as recent,
    count(*) filter (where status in ('queued', 'processing'))         as active
from jobs
where user_id = $1::uuid;
`

// QQueuePosition counts queued jobs with a better-or-equal priority score,
// including the job itself, which makes the count a 1-based position.
const QQueuePosition = `--sql 63b4dfad-e7bf-4ed4-8871-cf56455af3eb
select count(*)
from jobs
where status = 'queued'
  and priority_score <= $1::bigint;
`

// QClaimJob atomically takes ownership of the single best queued job.
// FOR UPDATE SKIP LOCKED guarantees two concurrent scheduler passes can never
// claim the same row.
const QClaimJob = `--sql 4df7d46b-8d60-4b9d-8299-e6a30095e0d6
with next_job as (
    select id
    from jobs
    where status = 'queued'
    order by priority_score asc, created_at asc
    for update skip locked
    limit 1
),
claimed as (
    update jobs
    set status = 'processing', started_at = now()
    where id in (select id from next_job)
    returning id, user_id, job_type, payload, image_count, quality, credits_reserved
)
select * from claimed;
`

// QCompleteJob finishes a processing job with its result, refunding the unused
// share for partial output. The status guard makes the refund exactly-once:
// a second application matches zero rows.
// $1 job_id, $2 result, $3 refund amount (0 for full output).
const QCompleteJob = `--sql bcb40676-6d56-490d-9d72-d0054ffddff7
with updated as (
    update jobs
    set status = 'completed',
        result = $2::jsonb,
        completed_at = now(),
        credits_refunded = least($3::bigint, credits_reserved)
    where id = $1::uuid
      and status = 'processing'
    returning id, user_id, credits_refunded
),
refunded as (
    update users u
    set credits = u.credits + updated.credits_refunded,
        updated_at = now()
    from updated
    where u.id = updated.user_id
      and updated.credits_refunded > 0
    returning u.id
),
ev as (
    insert into credit_events (user_id, job_id, delta, reason)
    select user_id, id, credits_refunded, 'partial_refund'
    from updated
    where credits_refunded > 0
)
select id from updated;
`

// QFailJob moves a processing job to failed and returns the entire remaining
// reservation. $1 job_id, $2 error message.
const QFailJob = `--sql 86b48aa7-91d6-4122-893f-ebf2738bc61c
with updated as (
    update jobs
    set status = 'failed',
        error_message = $2::text,
        completed_at = now(),
        credits_refunded = credits_reserved
    where id = $1::uuid
      and status = 'processing'
    returning id, user_id, credits_reserved as refund
),
refunded as (
    update users u
    set credits = u.credits + updated.refund,
        updated_at = now()
    from updated
    where u.id = updated.user_id
      and updated.refund > 0
    returning u.id
),
ev as (
    insert into credit_events (user_id, job_id, delta, reason)
    select user_id, id, refund, 'failure_refund'
    from updated
    where refund > 0
)
select id from updated;
`

// QCancelJob honors a user cancellation only while the job is still queued,
// refunding the full reservation. $1 job_id, $2 user_id.
const QCancelJob = `--sql 2a45b875-ad52-4d0b-842d-95128276ebd5
with updated as (
    update jobs
    set status = 'cancelled',
        completed_at = now(),
        credits_refunded = credits_reserved
    where id = $1::uuid
      and user_id = $2::uuid
      and status = 'queued'
    returning id, user_id, credits_reserved as refund
),
refunded as (
    update users u
    set credits = u.credits + updated.refund,
        updated_at = now()
    from updated
    where u.id = updated.user_id
      and updated.refund > 0
    returning u.id
),
ev as (
    insert into credit_events (user_id, job_id, delta, reason)
    select user_id, id, refund, 'cancel_refund'
    from updated
    where refund > 0
)
select id from updated;
`

// QSweepStaleJobs converts every processing job whose started_at predates the
// runtime budget to failed and restores its reservation. Safe to run
// repeatedly; swept rows no longer match the status guard.
// $1 max runtime seconds, $2 error message.
const QSweepStaleJobs = `--sql 1bded668-ad7e-4709-b7fb-68c35b7e6bb4
with stale as (
    update jobs
    set status = 'failed',
        error_message = $2::text,
        completed_at = now(),
        credits_refunded = credits_reserved
    where status = 'processing'
      and started_at < now() - ($1::bigint * interval '1 second')
    returning id, user_id, credits_reserved as refund
),
refunded as (
    update users u
    set credits = u.credits + totals.amount,
        updated_at = now()
    from (
        select user_id, sum(refund) as amount
        from stale
        where refund > 0
        group by user_id
    ) totals
    where u.id = totals.user_id
    returning u.id
),
ev as (
    insert into credit_events (user_id, job_id, delta, reason)
    select user_id, id, refund, 'stale_refund'
    from stale
    where refund > 0
)
select count(*) from stale;
`

// QGetJobForUser fetches a job scoped to its owner; other identities observe
// not-found rather than forbidden.
const QGetJobForUser = `--sql 68d5df42-56c7-49ad-b68f-edb35b862f5c
select id, user_id, job_type, status, payload, image_count, quality,
       priority_score, credits_reserved, credits_refunded,
       result, coalesce(error_message, ''), created_at, started_at, completed_at
from jobs
where id = $1::uuid
  and user_id = $2::uuid;
`

// QListJobs lists recent jobs, optionally filtered by status, for operators.
const QListJobs = `--sql 9c6309db-ea1e-4a8f-99ec-afb97ccce969
select id, user_id, job_type, status, priority_score, credits_reserved, created_at
from jobs
where ($1::text = '' or status = $1::text)
order by created_at desc
limit $2::int;
`
