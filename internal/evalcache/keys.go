package evalcache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"strconv"

	"github.com/sagelearn/sagacity/internal/model"
)

// Key format version prefixes. Any change to the canonical encoding must
// bump the prefix so old entries miss instead of mismatching.
const (
	criterionKeyPrefix = "c1:"
	profileKeyPrefix   = "q1:"
)

// CriterionKey builds the content-addressed key for one criterion score:
// hash(text, criterion name, criterion version, rules content hash).
// Every field is length-prefixed so adjacent values cannot collide.
func CriterionKey(text, criterionName string, criterionVersion int, rulesHash string) string {
	h := sha256.New()
	writeField(h, []byte(text))
	writeField(h, []byte(criterionName))
	writeField(h, []byte(strconv.Itoa(criterionVersion)))
	writeField(h, []byte(rulesHash))
	return criterionKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

// ProfileKey builds the aggregate key for a whole-profile evaluation of
// one text: hash over the text and every binding's identity (name,
// version, rules hash, weight) in binding order.
func ProfileKey(text string, bindings []model.UsesCriterion, rulesHashes map[string]string) string {
	h := sha256.New()
	writeField(h, []byte(text))
	for _, uc := range bindings {
		writeField(h, []byte(uc.CriterionName))
		writeField(h, []byte(strconv.Itoa(uc.CriterionVersion)))
		writeField(h, []byte(rulesHashes[uc.RulesID.String()]))
		writeField(h, []byte(strconv.FormatFloat(uc.Weight, 'f', 10, 64)))
	}
	return profileKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

func writeField(h hash.Hash, b []byte) {
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(b)))
	_, _ = h.Write(length[:])
	_, _ = h.Write(b)
}
