// Package harvest defines the records, collaborator interfaces and quality
// rules shared by the topic harvester: scouts discover ItemReferences, the
// fetch worker turns them into HarvestedRecords, and the scheduler,
// dedup and checkpoint stages move those records toward the final dataset.
package harvest
