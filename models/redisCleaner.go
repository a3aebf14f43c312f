package models

import (
	"bitbucket.org/mmdatafocus/backoffice_backend/utils"
)

type RedisCleaner interface {
	RemoveInstanceRedis() error // remove one
	RemoveAllRedis() error      // remove list & map if exists
}

// remove both item & list + map
func RemoveRedisBoth[T RedisCleaner](obj T) error {
	if err := obj.RemoveInstanceRedis(); err != nil {
		return err
	}
	if err := obj.RemoveAllRedis(); err != nil {
		return err
	}
	return nil
}

func (obj Warehouse) RemoveInstanceRedis() error {
	return utils.RemoveRedisItem[Warehouse](obj.ID)
}

func (obj Warehouse) RemoveAllRedis() error {
	if err := utils.RemoveRedisList[Warehouse](obj.CompanyId); err != nil {
		return err
	}
	return utils.RemoveRedisMap[Warehouse](obj.CompanyId)
}

func (obj Product) RemoveInstanceRedis() error {
	return utils.RemoveRedisItem[Product](obj.ID)
}

func (obj Product) RemoveAllRedis() error {
	if err := utils.RemoveRedisList[Product](obj.CompanyId); err != nil {
		return err
	}
	return utils.RemoveRedisMap[Product](obj.CompanyId)
}
