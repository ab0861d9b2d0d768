// Regions
// Each etcd cluster serves one region. Every key is prefixed by the
// region number so several regions can share tooling, and a new
// region is just a new etcd cluster started with a new region ID.

package objstore

import "github.com/saascore/saas-cloud/log"

var (
	myRegion uint32 = 0
)

func InitRegion(region uint32) {
	myRegion = region
}

func GetRegion() uint32 {
	if myRegion == 0 {
		log.FatalLog("Region not initialized")
	}
	return myRegion
}
