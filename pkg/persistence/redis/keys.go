package redis

const keyPrefix = "stageflow:"

func instanceKey(contentUID string) string {
	return keyPrefix + "instance:" + contentUID
}

// instancesKey returns the key of the set holding every tracked content UID.
func instancesKey() string {
	return keyPrefix + "instances"
}

func auditByContentKey(contentUID string) string {
	return keyPrefix + "audit:content:" + contentUID
}

func auditByUserKey(userID string) string {
	return keyPrefix + "audit:user:" + userID
}
