package tracking

import "os"

// rankEnvKeys are set by distributed launchers on worker processes.
var rankEnvKeys = []string{"RANK", "LOCAL_RANK", "SLURM_PROCID"}

// isPrimaryRank reports whether this process should perform tracking.
// Under a distributed launcher only rank zero tracks; a process with no
// rank environment is treated as primary.
func isPrimaryRank() bool {
	for _, key := range rankEnvKeys {
		if rank, ok := os.LookupEnv(key); ok {
			return rank == "0"
		}
	}
	return true
}
