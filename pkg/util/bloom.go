package util

import (
	"encoding/gob"
	"fmt"
	"hash/fnv"
	"math"
	"os"
	"sync"

	"github.com/bits-and-blooms/bitset"
)

// bloomFilter 是一个固定容量的布隆过滤器。
// 字段导出是为了 gob 序列化，包外不直接使用这个类型。
type bloomFilter struct {
	M         uint           // 位数组大小
	K         uint           // 哈希函数数量
	Bits      *bitset.BitSet // 位数组
	ItemCount uint           // 已添加的元素数量
	Capacity  uint           // 预估容量
}

// newBloomFilter 按预估容量和期望误报率创建一个固定容量的过滤器。
func newBloomFilter(capacity uint, errorRate float64) *bloomFilter {
	m := calculateM(capacity, errorRate)
	k := calculateK(capacity, m)
	return &bloomFilter{
		M:        m,
		K:        k,
		Bits:     bitset.New(m),
		Capacity: capacity,
	}
}

func (bf *bloomFilter) add(data []byte) {
	hashes := bf.hashKernels(data)
	for i := uint(0); i < bf.K; i++ {
		bf.Bits.Set(uint(hashes[i] % uint64(bf.M)))
	}
	bf.ItemCount++
}

func (bf *bloomFilter) test(data []byte) bool {
	hashes := bf.hashKernels(data)
	for i := uint(0); i < bf.K; i++ {
		if !bf.Bits.Test(uint(hashes[i] % uint64(bf.M))) {
			return false
		}
	}
	return true
}

func (bf *bloomFilter) isFull() bool {
	return bf.ItemCount >= bf.Capacity
}

// hashKernels 用双哈希法从两个 FNV 哈希派生出 k 个哈希值。
func (bf *bloomFilter) hashKernels(data []byte) []uint64 {
	h1 := fnv.New64a()
	h1.Write(data)
	hash1 := h1.Sum64()

	h2 := fnv.New64()
	h2.Write(data)
	hash2 := h2.Sum64()

	hashes := make([]uint64, bf.K)
	for i := uint(0); i < bf.K; i++ {
		hashes[i] = hash1 + uint64(i)*hash2
	}
	return hashes
}

// m = - (n * log(p)) / (log(2)^2)
func calculateM(n uint, p float64) uint {
	return uint(math.Ceil(-(float64(n) * math.Log(p)) / (math.Pow(math.Log(2), 2))))
}

// k = (m / n) * log(2)
func calculateK(n uint, m uint) uint {
	k := uint(math.Ceil((float64(m) / float64(n)) * math.Log(2)))
	if k < 1 {
		return 1
	}
	return k
}

// SBFConfig 定义了可伸缩布隆过滤器的配置参数。
type SBFConfig struct {
	InitialCapacity      uint
	ErrorRate            float64
	GrowthFactor         float64
	ErrorTighteningRatio float64
}

// sbfData 是 gob 编解码用的辅助结构体。
type sbfData struct {
	Config  SBFConfig
	Filters []*bloomFilter
}

// ScalableBloomFilter 是一个可以自动扩容、线程安全且可持久化的布隆过滤器。
// 当前的子过滤器写满后会追加一个容量更大、误报率更紧的新子过滤器，
// 整体误报率始终收敛在配置的 ErrorRate 附近。
type ScalableBloomFilter struct {
	config  SBFConfig
	filters []*bloomFilter
	lock    sync.RWMutex
}

// NewScalableBloomFilter 创建一个可伸缩的布隆过滤器。
func NewScalableBloomFilter(config SBFConfig) (*ScalableBloomFilter, error) {
	if config.InitialCapacity == 0 || config.ErrorRate <= 0 || config.GrowthFactor < 1 || config.ErrorTighteningRatio <= 0 || config.ErrorTighteningRatio >= 1 {
		return nil, fmt.Errorf("无效的SBF配置参数")
	}

	// 第一个子过滤器的误报率要比目标值更紧，
	// 这样后续子过滤器按 r 衰减后总误报率才不会超过 ErrorRate。
	firstErrorRate := config.ErrorRate * (1 - config.ErrorTighteningRatio)
	firstFilter := newBloomFilter(config.InitialCapacity, firstErrorRate)

	return &ScalableBloomFilter{
		config:  config,
		filters: []*bloomFilter{firstFilter},
	}, nil
}

// Add 向过滤器中添加一个元素。此操作是线程安全的。
func (sbf *ScalableBloomFilter) Add(data []byte) {
	sbf.lock.Lock()
	defer sbf.lock.Unlock()

	lastFilter := sbf.filters[len(sbf.filters)-1]

	// 最新的子过滤器写满后追加一个新的。
	if lastFilter.isFull() {
		newCapacity := uint(float64(lastFilter.Capacity) * sbf.config.GrowthFactor)

		// 从当前子过滤器的 M、K 反推出实际误报率，再按比例收紧。
		currentP := math.Pow(1-math.Exp(-float64(lastFilter.K*lastFilter.ItemCount)/float64(lastFilter.M)), float64(lastFilter.K))
		newErrorRate := currentP * sbf.config.ErrorTighteningRatio

		newFilter := newBloomFilter(newCapacity, newErrorRate)
		sbf.filters = append(sbf.filters, newFilter)
		lastFilter = newFilter
	}

	lastFilter.add(data)
}

// Test 检查一个元素是否可能存在。此操作是线程安全的。
// 返回 false 保证元素一定没被添加过，返回 true 则存在小概率误报。
func (sbf *ScalableBloomFilter) Test(data []byte) bool {
	sbf.lock.RLock()
	defer sbf.lock.RUnlock()

	// 新元素总是落在靠后的子过滤器里，从新到旧找命中更快。
	for i := len(sbf.filters) - 1; i >= 0; i-- {
		if sbf.filters[i].test(data) {
			return true
		}
	}
	return false
}

// WriteToFile 将当前的过滤器状态序列化并写入文件。
func (sbf *ScalableBloomFilter) WriteToFile(filePath string) error {
	sbf.lock.RLock()
	defer sbf.lock.RUnlock()

	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("创建文件失败: %w", err)
	}
	defer file.Close()

	data := sbfData{
		Config:  sbf.config,
		Filters: sbf.filters,
	}
	if err := gob.NewEncoder(file).Encode(data); err != nil {
		return fmt.Errorf("gob编码失败: %w", err)
	}
	return nil
}

// NewScalableBloomFilterFromFile 从文件加载并创建一个新的过滤器实例。
func NewScalableBloomFilterFromFile(filePath string) (*ScalableBloomFilter, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("打开文件失败: %w", err)
	}
	defer file.Close()

	var loaded sbfData
	if err := gob.NewDecoder(file).Decode(&loaded); err != nil {
		return nil, fmt.Errorf("gob解码失败: %w", err)
	}

	return &ScalableBloomFilter{
		config:  loaded.Config,
		filters: loaded.Filters,
	}, nil
}
