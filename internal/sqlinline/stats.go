package sqlinline

// QJobStatusCounts aggregates job counts per lifecycle state.
const QJobStatusCounts = `--sql bab21c1e-0863-4da6-96be-e67e33479966
select status, count(*)
from jobs
group by status;
`
